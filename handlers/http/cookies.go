package httpHandler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const AuthCookieName = "auth_token"

// CookieConfig controls the attributes of the session cookie.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

func setAuthCookie(c *gin.Context, cfg CookieConfig, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AuthCookieName, token, int(cfg.MaxAge.Seconds()), "/", "", cfg.Secure, true)
}

func clearAuthCookie(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AuthCookieName, "", -1, "/", "", cfg.Secure, true)
}
