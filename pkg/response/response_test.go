package response

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginated(t *testing.T) {
	r := Paginated(http.StatusOK, []int{1, 2}, 2, 10, 12)

	assert.Equal(t, "success", r.Status)
	assert.Equal(t, []int{1, 2}, r.Data)
	if assert.NotNil(t, r.Meta) {
		assert.Equal(t, Meta{Page: 2, Limit: 10, Total: 12}, *r.Meta)
	}
}

func TestErrorWithCode(t *testing.T) {
	r := ErrorWithCode(http.StatusNotFound, "NOT_FOUND", "brand 5 not found")

	assert.Equal(t, "error", r.Status)
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
	assert.Equal(t, "NOT_FOUND", r.Code)
	assert.Equal(t, "brand 5 not found", r.Error)
	assert.Nil(t, r.Meta)
}
