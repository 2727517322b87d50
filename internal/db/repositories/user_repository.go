// Package repositories implements the data access layer (repository pattern) for the
// Elit'Arte backend. Each repository type encapsulates all database queries for a domain
// entity; handlers and services never issue SQL directly.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/elitarte/elitarte-backend/internal/db/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, name, email, role, password_hash, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	if user.Role == "" {
		user.Role = models.RoleMember
	}

	query := `
		INSERT INTO users (id, name, email, role, password_hash, created_at, updated_at)
		VALUES (:id, :name, :email, :role, :password_hash, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, user)
	return err
}

// GetUserByID retrieves a user by ID. It returns (nil, nil) when no user matches.
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	err := r.db.GetContext(ctx, user, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email. It returns (nil, nil) when no user matches.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := r.db.GetContext(ctx, user, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser updates the profile fields of a user and reports whether a row matched.
func (r *UserRepository) UpdateUser(ctx context.Context, user *models.User) (bool, error) {
	user.UpdatedAt = time.Now()

	res, err := r.db.NamedExecContext(ctx, `
		UPDATE users SET name = :name, email = :email, role = :role, updated_at = :updated_at
		WHERE id = :id
	`, user)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteUser deletes a user and reports whether a row matched.
func (r *UserRepository) DeleteUser(ctx context.Context, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListUsers returns a page of users ordered by name along with the total count.
func (r *UserRepository) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, err
	}

	users := make([]*models.User, 0)
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
