// auth.go implements the session endpoints: e-mail/password login and logout. Every
// attempt is recorded in the audit trail under the short session retention window.
package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/elitarte/elitarte-backend/internal/audit"
	"github.com/elitarte/elitarte-backend/internal/auth"
	"github.com/elitarte/elitarte-backend/internal/db/repositories"
	"github.com/elitarte/elitarte-backend/internal/middleware"
)

const authEntity = "auth"

// AuthHandlers handles authentication-related endpoints
type AuthHandlers struct {
	userRepo *repositories.UserRepository
	tokens   *auth.TokenManager
	audit    *audit.Service
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(db *sqlx.DB, tokens *auth.TokenManager, auditSvc *audit.Service) *AuthHandlers {
	return &AuthHandlers{
		userRepo: repositories.NewUserRepository(db),
		tokens:   tokens,
		audit:    auditSvc,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// @Summary      Login
// @Description  Exchange e-mail and password for a bearer token.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Credentials"
// @Success      200  {object}  map[string]interface{}  "success, data: {token, expiresAt, user}"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/login [post]
// LoginHandler authenticates a user
// POST /api/v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid request: " + err.Error(),
			})
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))
		ctx := c.Request.Context()

		user, err := h.userRepo.GetUserByEmail(ctx, email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   translate(c, msgInternalError),
			})
			return
		}

		if user == nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
			var userID *string
			entityID := email
			if user != nil {
				userID = &user.ID
				entityID = user.ID
			}
			h.audit.LogUserAction(ctx, userID, audit.ActionLoginFailed, authEntity, entityID, c.Request,
				nil, map[string]interface{}{"email": email})

			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   translate(c, msgInvalidCredentials),
			})
			return
		}

		token, expiresAt, err := h.tokens.Issue(user.ID, user.Email, user.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   translate(c, msgInternalError),
			})
			return
		}

		h.audit.LogUserAction(ctx, &user.ID, audit.ActionLogin, authEntity, user.ID, c.Request, nil, nil)

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"token":     token,
				"expiresAt": expiresAt.UTC().Format(time.RFC3339),
				"user":      user,
			},
		})
	}
}

// @Summary      Logout
// @Description  Record the end of the caller's session. Tokens are stateless; the client discards its token.
// @Tags         Authentication
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "success, message"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/auth/logout [post]
// LogoutHandler ends the caller's session
// POST /api/v1/auth/logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey)
		h.audit.LogUserAction(c.Request.Context(), &userID, audit.ActionLogout, authEntity, userID, c.Request, nil, nil)

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": translate(c, msgLoggedOut),
		})
	}
}

// @Summary      Current user
// @Description  Return the authenticated user's profile.
// @Tags         Authentication
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "success, data: models.User"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/auth/me [get]
// MeHandler returns the authenticated user
// GET /api/v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    middleware.CurrentUser(c),
		})
	}
}
