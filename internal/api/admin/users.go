// users.go implements handlers for user account CRUD operations including listing,
// viewing, creating, updating and deleting users. Mutations are recorded by the audit
// middleware mounted on the route group; reads are recorded here explicitly, off the
// request path.
package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/elitarte/elitarte-backend/internal/audit"
	"github.com/elitarte/elitarte-backend/internal/auth"
	"github.com/elitarte/elitarte-backend/internal/db/models"
	"github.com/elitarte/elitarte-backend/internal/db/repositories"
	"github.com/elitarte/elitarte-backend/internal/middleware"
)

const (
	userEntity = "user"
	// listEntityID stands in for the entity id of collection reads
	listEntityID = "all"

	pgUniqueViolation = "23505"
)

// UserHandlers handles user management endpoints
type UserHandlers struct {
	userRepo *repositories.UserRepository
	audit    *audit.Service
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(db *sqlx.DB, auditSvc *audit.Service) *UserHandlers {
	return &UserHandlers{
		userRepo: repositories.NewUserRepository(db),
		audit:    auditSvc,
	}
}

func actorID(c *gin.Context) *string {
	if id := c.GetString(middleware.UserIDKey); id != "" {
		return &id
	}
	return nil
}

func validRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleArtist, models.RoleMember:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// @Summary      List users
// @Description  Get a paginated list of users. Admin only.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        page      query  int  false  "Page number (default 1)"
// @Param        per_page  query  int  false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "success, data: []models.User, pagination"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/users [get]
// ListUsersHandler lists all users with pagination
// GET /api/v1/users?page=1&per_page=20
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}

		offset := (page - 1) * perPage

		users, total, err := h.userRepo.ListUsers(c.Request.Context(), perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   translate(c, msgUsersListFailed),
			})
			return
		}

		h.audit.LogAsync(audit.Entry{
			UserID:     actorID(c),
			Action:     audit.Action(userEntity, audit.VerbList),
			EntityType: userEntity,
			EntityID:   listEntityID,
			NewValues:  map[string]interface{}{"page": page, "per_page": perPage},
		}, c.Request)

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    users,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// @Summary      Get user
// @Description  Get a user by ID.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "success, data: models.User"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/users/{id} [get]
// GetUserHandler retrieves a specific user by ID
// GET /api/v1/users/:id
func (h *UserHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")

		user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   translate(c, msgUserFetchFailed),
			})
			return
		}

		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   translate(c, msgUserNotFound),
			})
			return
		}

		h.audit.LogAsync(audit.Entry{
			UserID:     actorID(c),
			Action:     audit.Action(userEntity, audit.VerbView),
			EntityType: userEntity,
			EntityID:   user.ID,
		}, c.Request)

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    user,
		})
	}
}

// CreateUserRequest represents the request to create a new user
type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// @Summary      Create user
// @Description  Create a new user account. Admin only.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateUserRequest  true  "User to create"
// @Success      201  {object}  map[string]interface{}  "success, data: models.User"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      409  {object}  map[string]interface{}  "Email already in use"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/users [post]
// CreateUserHandler creates a new user
// POST /api/v1/users
func (h *UserHandlers) CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   translate(c, msgInvalidRequest),
				"details": err.Error(),
			})
			return
		}

		if req.Role != "" && !validRole(req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   translate(c, msgInvalidRole),
			})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			status := http.StatusInternalServerError
			msg := translate(c, msgUserCreateFailed)
			if errors.Is(err, auth.ErrWeakPassword) {
				status = http.StatusBadRequest
				msg = fmt.Sprintf(translate(c, msgWeakPassword), auth.MinPasswordLength)
			}
			c.JSON(status, gin.H{"success": false, "error": msg})
			return
		}

		user := &models.User{
			Name:         strings.TrimSpace(req.Name),
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			Role:         req.Role,
			PasswordHash: hash,
		}
		if err := h.userRepo.CreateUser(c.Request.Context(), user); err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{
					"success": false,
					"error":   translate(c, msgEmailInUse),
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   translate(c, msgUserCreateFailed),
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"data":    user,
		})
	}
}

// UpdateUserRequest represents the request to update a user. Omitted fields are
// left unchanged.
type UpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email" binding:"omitempty,email"`
	Role  *string `json:"role"`
}

// @Summary      Update user
// @Description  Update a user's name, email or role. Admin only.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "User ID"
// @Param        body  body  UpdateUserRequest  true  "Fields to update"
// @Success      200  {object}  map[string]interface{}  "success, data: models.User"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Failure      409  {object}  map[string]interface{}  "Email already in use"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/users/{id} [put]
// UpdateUserHandler updates an existing user. The user's state before the change
// is published under middleware.OldValuesKey for the audit entry.
// PUT /api/v1/users/:id
func (h *UserHandlers) UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")

		var req UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   translate(c, msgInvalidRequest),
				"details": err.Error(),
			})
			return
		}
		if req.Role != nil && !validRole(*req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   translate(c, msgInvalidRole),
			})
			return
		}

		user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   translate(c, msgUserFetchFailed),
			})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   translate(c, msgUserNotFound),
			})
			return
		}

		c.Set(middleware.OldValuesKey, user.Snapshot())

		if req.Name != nil {
			user.Name = strings.TrimSpace(*req.Name)
		}
		if req.Email != nil {
			user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		}
		if req.Role != nil {
			user.Role = *req.Role
		}

		updated, err := h.userRepo.UpdateUser(c.Request.Context(), user)
		if err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{
					"success": false,
					"error":   translate(c, msgEmailInUse),
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   translate(c, msgUserUpdateFailed),
			})
			return
		}
		if !updated {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   translate(c, msgUserNotFound),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    user,
		})
	}
}

// @Summary      Delete user
// @Description  Delete a user account. Admin only. An admin can not delete their own account.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "success, message"
// @Failure      400  {object}  map[string]interface{}  "Cannot delete own account"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/users/{id} [delete]
// DeleteUserHandler deletes a user
// DELETE /api/v1/users/:id
func (h *UserHandlers) DeleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")

		if userID == c.GetString(middleware.UserIDKey) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   translate(c, msgCannotDeleteSelf),
			})
			return
		}

		user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   translate(c, msgUserFetchFailed),
			})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   translate(c, msgUserNotFound),
			})
			return
		}
		c.Set(middleware.OldValuesKey, user.Snapshot())

		deleted, err := h.userRepo.DeleteUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   translate(c, msgUserDeleteFailed),
			})
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   translate(c, msgUserNotFound),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": translate(c, msgUserDeleted),
		})
	}
}
