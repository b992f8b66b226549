package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"marketplace/internal/model"
	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const actorKey = "actor"

// PermissionLoader resolves the permission codes granted to a role.
type PermissionLoader interface {
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
}

// permCacheEntry stores cached permission codes for a role with TTL
type permCacheEntry struct {
	codes     []string
	expiresAt time.Time
}

// Auth validates access tokens and turns them into a model.Actor.
type Auth struct {
	secret   []byte
	perms    PermissionLoader
	cache    sync.Map // roleName -> permCacheEntry
	cacheTTL time.Duration
}

func NewAuth(secret string, perms PermissionLoader, cacheTTL time.Duration) *Auth {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Auth{secret: []byte(secret), perms: perms, cacheTTL: cacheTTL}
}

type tokenClaims struct {
	userID   uuid.UUID
	role     string
	userType string
}

func (a *Auth) parse(tokenString string) (*tokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, errors.New("invalid subject in token")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return nil, errors.New("role not found in token")
	}
	userType, _ := claims["user_type"].(string)

	return &tokenClaims{userID: userID, role: role, userType: userType}, nil
}

// ParseUserID validates a raw token and returns its subject.
func (a *Auth) ParseUserID(tokenString string) (uuid.UUID, error) {
	c, err := a.parse(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	return c.userID, nil
}

// Authenticate reads the token from the access_token cookie or the
// Authorization header and stores the resolved Actor in the context.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, cookieErr := c.Cookie("access_token")
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		claims, err := a.parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		perms, err := a.permissionsFor(c.Request.Context(), claims.role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}

		c.Set(actorKey, model.Actor{
			ID:          claims.userID,
			UserType:    claims.userType,
			Role:        claims.role,
			Permissions: perms,
		})
		c.Next()
	}
}

// RequirePermission aborts with 403 unless the authenticated actor holds
// every listed code. It must run after Authenticate.
func (a *Auth) RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Not authenticated"))
			return
		}
		for _, required := range requiredPerms {
			if !actor.HasPermission(required) {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+required+"'"))
				return
			}
		}
		c.Next()
	}
}

// ActorFrom returns the actor stored by Authenticate.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

func (a *Auth) permissionsFor(ctx context.Context, roleName string) ([]string, error) {
	if entry, ok := a.cache.Load(roleName); ok {
		cached := entry.(permCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.codes, nil
		}
	}

	codes, err := a.perms.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, err
	}

	a.cache.Store(roleName, permCacheEntry{
		codes:     codes,
		expiresAt: time.Now().Add(a.cacheTTL),
	})
	return codes, nil
}

// ClearPermissionCache removes cached permissions for a specific role (or all roles if empty)
func (a *Auth) ClearPermissionCache(roleName string) {
	if roleName == "" {
		a.cache.Range(func(key, _ interface{}) bool {
			a.cache.Delete(key)
			return true
		})
		return
	}
	a.cache.Delete(roleName)
}
