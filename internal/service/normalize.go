package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"marketplace/internal/model"
	"marketplace/internal/repository"
)

// boolFields arrive as strings from form-encoded clients.
var boolFields = []string{"is_active", "is_featured", "is_best_seller", "is_offer", "requires_prescription"}

// coerceBooleans rewrites "true"/"false"/"1"/"0" (and similar) in the known
// flag fields into real booleans. Unrecognized strings are left alone.
func coerceBooleans(data model.JSONB) {
	for _, key := range boolFields {
		raw, ok := data[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "yes", "on":
				data[key] = true
			case "false", "0", "no", "off", "":
				data[key] = false
			}
		case float64:
			data[key] = v != 0
		}
	}
}

// slugify lowercases s and joins its alphanumeric runs with dashes.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// uniqueSlug appends -1, -2, ... to the slug of name until no other row
// holds it.
func uniqueSlug(ctx context.Context, store repository.EntityStore, name string, excludeID uint) (string, error) {
	base := slugify(name)
	if base == "" {
		base = string(store.Type())
	}
	candidate := base
	for i := 1; ; i++ {
		taken, err := store.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// normalizePayload prepares a create or update payload for the entity store.
// It returns a copy; data is not modified.
func normalizePayload(ctx context.Context, store repository.EntityStore, requestType string, entityID uint, data model.JSONB) (model.JSONB, error) {
	out := data.Clone()
	if out == nil {
		out = model.JSONB{}
	}
	coerceBooleans(out)

	if !store.Type().HasSlug() {
		return out, nil
	}
	name, _ := out["name"].(string)
	if strings.TrimSpace(name) == "" {
		// an update that leaves name alone keeps its slug
		delete(out, "slug")
		return out, nil
	}
	exclude := uint(0)
	if requestType == model.RequestTypeUpdate {
		exclude = entityID
	}
	slug, err := uniqueSlug(ctx, store, name, exclude)
	if err != nil {
		return nil, err
	}
	out["slug"] = slug
	return out, nil
}
