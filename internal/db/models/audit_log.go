// Package models - audit_log.go defines the AuditLog model, an append-only record of a
// state-changing action: who did it, what kind of action, which entity it touched, the
// payload involved and where the request came from.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap is a JSONB column holding an arbitrary object. A nil map is stored as NULL.
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("JSONMap: unsupported source type %T", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// AuditLog represents one audit log entry. Rows are never updated after insert.
type AuditLog struct {
	ID         int64     `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId"`         // nil for unauthenticated or system actions
	Action     string    `db:"action" json:"action"`          // "USER_CREATE", "login", "login_failed"
	EntityType string    `db:"entity_type" json:"entityType"` // "user", "event", "order"
	EntityID   string    `db:"entity_id" json:"entityId"`
	OldValues  JSONMap   `db:"old_values" json:"oldValues"`
	NewValues  JSONMap   `db:"new_values" json:"newValues"`
	IPAddress  *string   `db:"ip_address" json:"ipAddress"`
	UserAgent  *string   `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// AuditActor is the public identity of the user who performed an action
type AuditActor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AuditLogWithUser is an audit log entry joined with its actor, when resolvable
type AuditLogWithUser struct {
	AuditLog
	User *AuditActor `json:"user"`
}
