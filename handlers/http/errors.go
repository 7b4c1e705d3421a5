package httpHandler

import (
	"errors"
	"net/http"
	"strings"

	"energy-server/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// respondError maps use case errors onto a status and a JSON error body and
// aborts the chain.
func respondError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

func errorResponse(err error) (int, gin.H) {
	var ve *usecases.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, gin.H{"error": ve.Error(), "fields": ve.FieldErrors}
	case errors.Is(err, usecases.ErrEmailTaken):
		return http.StatusBadRequest, gin.H{"error": "Email already exists"}
	case errors.Is(err, usecases.ErrConflict):
		return http.StatusBadRequest, gin.H{"error": capitalize(err.Error())}
	case errors.Is(err, usecases.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": capitalize(err.Error())}
	case errors.Is(err, usecases.ErrInvalidCredentials):
		return http.StatusUnauthorized, gin.H{"error": "Invalid email or password"}
	case errors.Is(err, usecases.ErrTokenExpired):
		return http.StatusUnauthorized, gin.H{"error": "Token expired"}
	case errors.Is(err, usecases.ErrTokenInvalid), errors.Is(err, usecases.ErrUnauthorized):
		return http.StatusUnauthorized, gin.H{"error": "Unauthorized"}
	case errors.Is(err, usecases.ErrForbidden):
		return http.StatusForbidden, gin.H{"error": "Access denied"}
	}
	return http.StatusInternalServerError, gin.H{"error": "Internal server error"}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
