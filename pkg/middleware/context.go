package middleware

import (
	"context"

	"pratham-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type contextKey string

// UserIDKey is the key for user ID values in contexts
const UserIDKey contextKey = "userID"

// WithRequestContext returns the request context enriched with the request and user IDs
func WithRequestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()

	if requestID := c.GetString("requestID"); requestID != "" {
		ctx = context.WithValue(ctx, logger.RequestIDKey, requestID)
	}

	if userID := UserID(c); userID != "" {
		ctx = context.WithValue(ctx, UserIDKey, userID)
	}

	return ctx
}

// GetUserID extracts the user ID from a context
func GetUserID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}

	return ""
}

// CORS allows the configured origins, including WebSocket upgrade headers
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Authorization, Origin, Upgrade, Connection, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Total-Count")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
