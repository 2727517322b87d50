// Package audit records who did what to which entity. Entries are written to the
// audit_logs table through a Store and optionally forwarded to external sinks
// (webhook, file) through a Shipper.
//
// Recording is best effort: a failed write is logged and counted but never
// reported to the caller, so auditing can not break the action being audited.
package audit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/elitarte/elitarte-backend/internal/db/models"
	"github.com/elitarte/elitarte-backend/internal/db/repositories"
	"github.com/elitarte/elitarte-backend/internal/safego"
	"github.com/elitarte/elitarte-backend/internal/telemetry"
)

const (
	// DefaultLimit is the page size used when a query does not set one.
	DefaultLimit = 50

	shipTimeout       = 10 * time.Second
	detachedWriteWait = 5 * time.Second
)

// Store persists and reads audit entries. *repositories.AuditRepository satisfies it.
type Store interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListAuditLogs(ctx context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLogWithUser, int, error)
}

// Entry is one action to record. Nil pointers and nil maps are stored as NULL.
type Entry struct {
	UserID     *string
	Action     string
	EntityType string
	EntityID   string
	OldValues  map[string]interface{}
	NewValues  map[string]interface{}
	IPAddress  *string
	UserAgent  *string
}

// Query selects audit entries. Unset filters match everything.
type Query struct {
	EntityType *string
	EntityID   *string
	UserID     *string
	Limit      int
	Offset     int
}

// Page is one page of query results. Count is the number of matching entries
// before pagination.
type Page struct {
	Data  []*models.AuditLogWithUser `json:"data"`
	Count int                        `json:"count"`
}

// Service writes and reads the audit trail.
type Service struct {
	store   Store
	shipper Shipper
}

// NewService creates a Service. shipper may be nil.
func NewService(store Store, shipper Shipper) *Service {
	return &Service{store: store, shipper: shipper}
}

// Log records e. When r is non-nil, a missing IP address or user agent is taken
// from the request. Errors are logged and swallowed.
func (s *Service) Log(ctx context.Context, e Entry, r *http.Request) {
	fillFromRequest(&e, r)

	record := &models.AuditLog{
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldValues:  models.JSONMap(e.OldValues),
		NewValues:  models.JSONMap(e.NewValues),
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
	}

	if err := s.store.CreateAuditLog(ctx, record); err != nil {
		telemetry.AuditWritesTotal.WithLabelValues("error").Inc()
		slog.Error("failed to write audit log",
			"action", e.Action,
			"entity_type", e.EntityType,
			"entity_id", e.EntityID,
			"error", err,
		)
		return
	}
	telemetry.AuditWritesTotal.WithLabelValues("success").Inc()

	if s.shipper != nil {
		s.ship(record)
	}
}

// LogAsync records e on its own goroutine, bounded by a 5 s timeout, so the
// caller does not wait for the insert. Request details are copied before it
// returns.
func (s *Service) LogAsync(e Entry, r *http.Request) {
	fillFromRequest(&e, r)
	safego.Go("audit-write", func() {
		ctx, cancel := context.WithTimeout(context.Background(), detachedWriteWait)
		defer cancel()
		s.Log(ctx, e, nil)
	})
}

func fillFromRequest(e *Entry, r *http.Request) {
	if r == nil {
		return
	}
	if e.IPAddress == nil {
		if ip := ClientIP(r); ip != "" {
			e.IPAddress = &ip
		}
	}
	if e.UserAgent == nil {
		if ua := r.UserAgent(); ua != "" {
			e.UserAgent = &ua
		}
	}
}

func (s *Service) ship(record *models.AuditLog) {
	safego.Go("audit-ship", func() {
		ctx, cancel := context.WithTimeout(context.Background(), shipTimeout)
		defer cancel()
		if err := s.shipper.Ship(ctx, record); err != nil {
			slog.Warn("failed to ship audit log", "id", record.ID, "action", record.Action, "error", err)
		}
	})
}

// LogUserAction is the positional form of Log used by handlers and the capture
// middleware.
func (s *Service) LogUserAction(ctx context.Context, userID *string, action, entityType, entityID string, r *http.Request, oldValues, newValues map[string]interface{}) {
	s.Log(ctx, Entry{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}, r)
}

// GetLogs returns entries matching q, newest first. Store errors are logged and
// yield an empty page.
func (s *Service) GetLogs(ctx context.Context, q Query) Page {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	filters := repositories.AuditFilters{
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		UserID:     q.UserID,
	}
	logs, total, err := s.store.ListAuditLogs(ctx, filters, q.Limit, q.Offset)
	if err != nil {
		slog.Error("failed to read audit logs", "error", err)
		return Page{Data: []*models.AuditLogWithUser{}, Count: 0}
	}
	if logs == nil {
		logs = []*models.AuditLogWithUser{}
	}
	return Page{Data: logs, Count: total}
}

// Close releases the configured shipper.
func (s *Service) Close() error {
	if s.shipper == nil {
		return nil
	}
	return s.shipper.Close()
}

// ClientIP returns the originating client address of r: the first
// X-Forwarded-For hop, then X-Real-IP, then the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
