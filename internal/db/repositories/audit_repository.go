// audit_repository.go implements AuditRepository, providing the database queries behind the
// audit log: append-only inserts, filtered and paginated reads joined with the acting user,
// and the age-based bulk deletes used by the retention sweep.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/elitarte/elitarte-backend/internal/db/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit logs. All set filters are ANDed.
type AuditFilters struct {
	EntityType *string
	EntityID   *string
	UserID     *string
}

// whereClause renders the filters as a WHERE clause with positional arguments.
func (f AuditFilters) whereClause() (string, []interface{}) {
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		conds = append(conds, fmt.Sprintf("a.%s = $%d", column, len(args)))
	}
	add("entity_type", f.EntityType)
	add("entity_id", f.EntityID)
	add("user_id", f.UserID)

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// auditLogRow is one row of the audit log joined with the users table
type auditLogRow struct {
	models.AuditLog
	ActorID    sql.NullString `db:"actor_id"`
	ActorName  sql.NullString `db:"actor_name"`
	ActorEmail sql.NullString `db:"actor_email"`
	ActorRole  sql.NullString `db:"actor_role"`
}

func (r *auditLogRow) toModel() *models.AuditLogWithUser {
	out := &models.AuditLogWithUser{AuditLog: r.AuditLog}
	if r.ActorID.Valid {
		out.User = &models.AuditActor{
			ID:    r.ActorID.String,
			Name:  r.ActorName.String,
			Email: r.ActorEmail.String,
			Role:  r.ActorRole.String,
		}
	}
	return out
}

// CreateAuditLog inserts a new audit log entry. ID and timestamps are assigned by the
// database and copied back into log.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, old_values, new_values, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRowxContext(ctx, query,
		log.UserID,
		log.Action,
		log.EntityType,
		log.EntityID,
		log.OldValues,
		log.NewValues,
		log.IPAddress,
		log.UserAgent,
	).Scan(&log.ID, &log.CreatedAt, &log.UpdatedAt)
}

// ListAuditLogs retrieves audit logs matching filters, newest first. The returned total
// counts every matching row regardless of limit and offset.
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLogWithUser, int, error) {
	where, args := filters.whereClause()

	var total int
	countQuery := `SELECT COUNT(*) FROM audit_logs a` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT a.id, a.user_id, a.action, a.entity_type, a.entity_id, a.old_values, a.new_values,
		       a.ip_address, a.user_agent, a.created_at, a.updated_at,
		       u.id AS actor_id, u.name AS actor_name, u.email AS actor_email, u.role AS actor_role
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id` + where +
		fmt.Sprintf(` ORDER BY a.created_at DESC, a.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var rows []auditLogRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}

	logs := make([]*models.AuditLogWithUser, 0, len(rows))
	for i := range rows {
		logs = append(logs, rows[i].toModel())
	}
	return logs, total, nil
}

// DeleteByActionsOlderThan removes entries whose action is one of actions and that were
// created before cutoff. It returns the number of rows removed.
func (r *AuditRepository) DeleteByActionsOlderThan(ctx context.Context, actions []string, cutoff time.Time) (int64, error) {
	if len(actions) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_logs WHERE created_at < $1 AND action = ANY($2)`,
		cutoff, pq.Array(actions),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOlderThan removes every entry created before cutoff and returns the number of
// rows removed.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
