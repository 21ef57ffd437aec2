package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cleaning-booking-server/models"
	"cleaning-booking-server/types"
)

type TokenParser interface {
	ParseAccessToken(tokenString string) (*types.Claims, error)
}

type UserLoader interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

func unauthorized(c *gin.Context, errMsg, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   errMsg,
		"message": message,
	})
}

// authenticate resolves tokenString to an active user and stores it in
// the context under "user", "user_id" and "role".
func authenticate(c *gin.Context, tokens TokenParser, users UserLoader, tokenString string) bool {
	claims, err := tokens.ParseAccessToken(tokenString)
	if err != nil {
		unauthorized(c, "Invalid token", "Token is invalid or expired")
		return false
	}

	user, err := users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		unauthorized(c, "User not found", "User associated with token not found")
		return false
	}
	if !user.IsActive {
		unauthorized(c, "User inactive", "User account is deactivated")
		return false
	}

	c.Set("user", *user)
	c.Set("user_id", user.ID)
	c.Set("role", string(user.Type))
	return true
}

// AuthMiddleware requires a "Bearer <token>" Authorization header.
func AuthMiddleware(tokens TokenParser, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Authorization header required", "Please provide a valid token")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			unauthorized(c, "Invalid token format", "Token must be in format: Bearer <token>")
			return
		}
		if !authenticate(c, tokens, users, tokenString) {
			return
		}
		c.Next()
	}
}

// WebSocketAuthMiddleware reads the token from the "token" query parameter,
// since browsers cannot set headers on a websocket upgrade.
func WebSocketAuthMiddleware(tokens TokenParser, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			log.Printf("🔌 Websocket upgrade without token from %s", c.ClientIP())
			unauthorized(c, "Token required", "Please provide a valid token in query parameters")
			return
		}
		if !authenticate(c, tokens, users, tokenString) {
			return
		}
		c.Next()
	}
}

// RequireRole lets the request through only for the given roles. It must
// run after one of the auth middlewares.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.UserRole(c.GetString("role"))
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "Forbidden",
			"message": "You do not have access to this resource",
		})
	}
}
