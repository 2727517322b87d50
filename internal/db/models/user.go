// Package models - user.go defines the User model for platform accounts (artists,
// members and administrators).
package models

import "time"

// Roles recognised by the platform
const (
	RoleAdmin  = "admin"
	RoleArtist = "artist"
	RoleMember = "member"
)

// User represents a user in the system
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Role         string    `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Snapshot returns the auditable fields of the user as a plain map. Credentials are
// never included.
func (u *User) Snapshot() map[string]interface{} {
	if u == nil {
		return nil
	}
	return map[string]interface{}{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}
