package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dragonfly-id/internal/pkg/jwtutil"
	"dragonfly-id/internal/transport/http/response"
)

const (
	ContextObserverIDKey = "observer_id"
	ContextUsernameKey   = "username"
)

const bearerPrefix = "Bearer "

// AuthJWT requires a valid observer token and stores its claims on the context.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			return
		}

		claims, err := jwtutil.ParseToken(secret, strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix)))
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			return
		}

		c.Set(ContextObserverIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}
