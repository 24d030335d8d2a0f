package middleware

import (
	"strings"

	"pratham-chat/backend/pkg/errors"
	"pratham-chat/backend/pkg/jwt"
	"pratham-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TokenValidator is the part of jwt.Service the auth middleware needs
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.JWTClaims, error)
}

// JWTAuthMiddleware checks that the request has a valid JWT and adds claims to the context.
// Browsers cannot set headers on a WebSocket upgrade, so a token query parameter is accepted too.
func JWTAuthMiddleware(validator TokenValidator, log *logger.Logger) gin.HandlerFunc {
	log = logger.Or(log)
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
			c.Abort()
			return
		}

		// Strip "Bearer " prefix if present
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := validator.ValidateToken(token)
		if err != nil {
			log.Warn("Invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("userID", claims.UserID)

		c.Next()
	}
}

// UserID returns the authenticated user set by JWTAuthMiddleware
func UserID(c *gin.Context) string {
	return c.GetString("userID")
}
