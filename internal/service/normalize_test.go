package service

import (
	"testing"

	"marketplace/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestCoerceBooleans(t *testing.T) {
	data := model.JSONB{
		"is_active":             "true",
		"is_featured":           "0",
		"is_best_seller":        float64(1),
		"requires_prescription": "maybe",
		"name":                  "true",
	}
	coerceBooleans(data)

	assert.Equal(t, true, data["is_active"])
	assert.Equal(t, false, data["is_featured"])
	assert.Equal(t, true, data["is_best_seller"])
	assert.Equal(t, "maybe", data["requires_prescription"])
	assert.Equal(t, "true", data["name"])
	_, present := data["is_offer"]
	assert.False(t, present)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Acme Pharma":         "acme-pharma",
		"  Dr. Reddy's Labs ": "dr-reddy-s-labs",
		"Vitamin C 500mg!!":   "vitamin-c-500mg",
		"---":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, slugify(in), in)
	}
}
