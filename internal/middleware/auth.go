// Package middleware provides Gin HTTP middleware for authentication, authorization,
// rate limiting, security headers, request observability and audit capture.
//
// Middleware ordering matters and is enforced in router.go:
//
//	RequestID → Logger → Metrics → Security → CORS → RateLimit → Auth → RequireRole → Audit → Handler
//
// Security headers run early so they appear on all responses including errors.
// Auth populates the user identity and role; RequireRole and Audit read from that context.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/elitarte/elitarte-backend/internal/auth"
	"github.com/elitarte/elitarte-backend/internal/db/models"
)

// Context keys populated by AuthMiddleware
const (
	UserKey     = "user"
	UserIDKey   = "user_id"
	UserRoleKey = "user_role"
)

// UserLookup loads a user by id. *repositories.UserRepository satisfies it.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// AuthMiddleware validates the bearer token and loads the acting user. The role
// stored in the context is the one currently in the database, not the one in
// the token, so demotions apply immediately.
func AuthMiddleware(tokens *auth.TokenManager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c.GetHeader("Authorization"))
		if msg != "" {
			abortUnauthorized(c, msg)
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "Failed to load user",
			})
			return
		}
		if user == nil {
			abortUnauthorized(c, "User not found")
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)
		c.Set(UserRoleKey, user.Role)

		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header. A non-empty
// second result describes why the header was rejected.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "Missing authorization header"
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "Authorization header must start with 'Bearer '"
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", "Authorization token is empty"
	}
	return token, ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   msg,
	})
}

// CurrentUser returns the user loaded by AuthMiddleware, or nil
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
