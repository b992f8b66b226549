package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-secret"

type stubLoader struct {
	perms map[string][]string
	calls int
}

func (s *stubLoader) GetPermissionsByRoleName(_ context.Context, role string) ([]string, error) {
	s.calls++
	codes, ok := s.perms[role]
	if !ok {
		return nil, errors.New("no such role")
	}
	return codes, nil
}

func signToken(t *testing.T, secret string, userID uuid.UUID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       userID.String(),
		"role":      role,
		"user_type": model.UserTypeVendor,
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newRouter(auth *Auth, perms ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", auth.Authenticate(), auth.RequirePermission(perms...), func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID.String(), "role": actor.Role})
	})
	return r
}

func doGet(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	loader := &stubLoader{perms: map[string][]string{"vendor": {model.PermInventoryRead}}}
	auth := NewAuth(testSecret, loader, time.Minute)
	userID := uuid.New()

	t.Run("missing header", func(t *testing.T) {
		w := doGet(newRouter(auth), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad scheme", func(t *testing.T) {
		w := doGet(newRouter(auth), "Token abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		w := doGet(newRouter(auth), "Bearer "+signToken(t, "other", userID, "vendor"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("granted", func(t *testing.T) {
		w := doGet(newRouter(auth, model.PermInventoryRead), "Bearer "+signToken(t, testSecret, userID, "vendor"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), userID.String())
	})

	t.Run("missing permission", func(t *testing.T) {
		w := doGet(newRouter(auth, model.PermInventoryWrite), "Bearer "+signToken(t, testSecret, userID, "vendor"))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		w := doGet(newRouter(auth), "Bearer "+signToken(t, testSecret, userID, "ghost"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestPermissionCache(t *testing.T) {
	loader := &stubLoader{perms: map[string][]string{"vendor": {model.PermInventoryRead}}}
	auth := NewAuth(testSecret, loader, time.Minute)
	r := newRouter(auth, model.PermInventoryRead)
	header := "Bearer " + signToken(t, testSecret, uuid.New(), "vendor")

	doGet(r, header)
	doGet(r, header)
	assert.Equal(t, 1, loader.calls)

	auth.ClearPermissionCache("vendor")
	doGet(r, header)
	assert.Equal(t, 2, loader.calls)
}

func TestParseUserID(t *testing.T) {
	auth := NewAuth(testSecret, &stubLoader{}, time.Minute)
	userID := uuid.New()

	got, err := auth.ParseUserID(signToken(t, testSecret, userID, "vendor"))
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = auth.ParseUserID("not-a-token")
	assert.Error(t, err)
}

func TestRequestIDAndLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "abc", entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}
