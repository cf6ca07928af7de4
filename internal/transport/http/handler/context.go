package handler

import (
	"github.com/gin-gonic/gin"

	"dragonfly-id/internal/transport/http/middleware"
)

func getObserverIDFromContext(c *gin.Context) (uint, bool) {
	v, exists := c.Get(middleware.ContextObserverIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}
