package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SetTokenCookie stores the access token as an HttpOnly cookie. Cross-origin
// deployments (secure=true) need SameSite=None.
func SetTokenCookie(c *gin.Context, accessToken string, ttl time.Duration, secure bool) {
	c.SetSameSite(sameSite(secure))
	c.SetCookie("access_token", accessToken, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearTokenCookie removes the access_token cookie.
func ClearTokenCookie(c *gin.Context, secure bool) {
	c.SetSameSite(sameSite(secure))
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
}

func sameSite(secure bool) http.SameSite {
	if secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
