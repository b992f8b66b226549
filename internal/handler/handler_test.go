package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketplace/internal/apperror"
	"marketplace/internal/middleware"
	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-secret"

type roleLoader map[string][]string

func (l roleLoader) GetPermissionsByRoleName(_ context.Context, role string) ([]string, error) {
	codes, ok := l[role]
	if !ok {
		return nil, apperror.NotFound("role %q not found", role)
	}
	return codes, nil
}

type fakeCatalog struct {
	applied bool
	err     error
	got     service.MutateCatalogInput
}

func (f *fakeCatalog) Mutate(_ context.Context, _ model.Actor, in service.MutateCatalogInput) (*service.MutationResult, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	if f.applied {
		return &service.MutationResult{Applied: true, Entity: model.JSONB{"name": in.Data["name"]}}, nil
	}
	return &service.MutationResult{ApprovalRequest: &model.ApprovalRequest{Status: model.ApprovalPending}}, nil
}

func (f *fakeCatalog) Get(context.Context, string, uint) (model.JSONB, error) {
	return nil, f.err
}

func (f *fakeCatalog) List(context.Context, string, string, int, int) ([]model.JSONB, int64, error) {
	return []model.JSONB{{"name": "a"}}, 1, nil
}

func (f *fakeCatalog) EntityTypes() []repository.EntityType {
	return []repository.EntityType{repository.EntityBrand}
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       uuid.NewString(),
		"role":      role,
		"user_type": model.UserTypeStaff,
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func catalogRouter(svc service.CatalogService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := middleware.NewAuth(testSecret, roleLoader{
		"writer": {model.PermCatalogRead, model.PermCatalogWrite},
		"reader": {model.PermCatalogRead},
	}, time.Minute)
	r := gin.New()
	NewCatalogHandler(svc, auth).RegisterRoutes(&r.RouterGroup)
	return r
}

func do(r http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperror.NotFound("x"), http.StatusNotFound},
		{apperror.Conflict("x"), http.StatusConflict},
		{apperror.AlreadyApplied("x"), http.StatusConflict},
		{apperror.Validation("x"), http.StatusBadRequest},
		{apperror.Forbidden("x"), http.StatusForbidden},
		{apperror.InvalidState("x"), http.StatusUnprocessableEntity},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestCatalogWriteStatus(t *testing.T) {
	applied := &fakeCatalog{applied: true}
	r := catalogRouter(applied)

	w := do(r, http.MethodPost, "/api/catalog/brand", bearer(t, "writer"), `{"data":{"name":"Acme"},"reason":"new"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, model.RequestTypeCreate, applied.got.RequestType)
	assert.Equal(t, "brand", applied.got.EntityType)
	assert.Equal(t, "new", applied.got.Reason)

	w = do(r, http.MethodPut, "/api/catalog/brand/4", bearer(t, "writer"), `{"data":{"name":"Acme"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, applied.got.EntityID)
	assert.Equal(t, uint(4), *applied.got.EntityID)

	queued := &fakeCatalog{}
	w = do(catalogRouter(queued), http.MethodDelete, "/api/catalog/brand/4", bearer(t, "writer"), "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	var body struct {
		Data service.MutationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Data.Applied)
	require.NotNil(t, body.Data.ApprovalRequest)
	assert.Equal(t, model.ApprovalPending, body.Data.ApprovalRequest.Status)
}

func TestCatalogErrors(t *testing.T) {
	r := catalogRouter(&fakeCatalog{err: apperror.NotFound("brand 9 not found")})

	w := do(r, http.MethodGet, "/api/catalog/brand/9", bearer(t, "reader"), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)

	w = do(r, http.MethodGet, "/api/catalog/brand/abc", bearer(t, "reader"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/catalog/brand", bearer(t, "reader"), `{"data":{}}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, "/api/catalog", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r = catalogRouter(&fakeCatalog{err: errors.New("connection reset")})
	w = do(r, http.MethodPost, "/api/catalog/brand", bearer(t, "writer"), `{"data":{"name":"x"}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestCatalogListIsPaginated(t *testing.T) {
	r := catalogRouter(&fakeCatalog{})
	w := do(r, http.MethodGet, "/api/catalog/brand?page=1&limit=5", bearer(t, "reader"), "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Meta struct {
			Page  int   `json:"page"`
			Limit int   `json:"limit"`
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Meta.Page)
	assert.Equal(t, 5, body.Meta.Limit)
	assert.Equal(t, int64(1), body.Meta.Total)
}
