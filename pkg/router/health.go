package router

import (
	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes() {
	handler := r.Container.Health.Handler(func() gin.H {
		return gin.H{
			"websocket": gin.H{
				"active_connections": r.Container.Hub.ClientCount(),
			},
			"persistence": gin.H{
				"backend": r.Container.Backend.Name(),
				"breaker": string(r.Container.Breaker.GetState()),
			},
		}
	})

	// Register both health endpoint paths for compatibility
	r.Engine.GET("/health", handler)
	r.Engine.GET("/api/health", handler)
}
