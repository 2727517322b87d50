// Package audittest provides an in-memory audit store for tests.
package audittest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/elitarte/elitarte-backend/internal/db/models"
	"github.com/elitarte/elitarte-backend/internal/db/repositories"
)

// Store keeps audit entries in memory. It satisfies audit.Store and the purge
// interface used by the cleanup job. The zero value is ready to use.
type Store struct {
	mu      sync.Mutex
	logs    []*models.AuditLog
	users   map[string]*models.AuditActor
	nextID  int64
	written chan *models.AuditLog

	// Err, when set, is returned by every method.
	Err error
	// Now stamps new entries; defaults to time.Now.
	Now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Written returns a channel receiving every successfully created entry. It is
// buffered so writers never block on an idle test.
func (s *Store) Written() <-chan *models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written == nil {
		s.written = make(chan *models.AuditLog, 64)
	}
	return s.written
}

// AddUser registers an actor so list results can resolve it.
func (s *Store) AddUser(u models.AuditActor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]*models.AuditActor)
	}
	s.users[u.ID] = &u
}

// Seed inserts log as-is, keeping its CreatedAt.
func (s *Store) Seed(log models.AuditLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	log.ID = s.nextID
	if log.UpdatedAt.IsZero() {
		log.UpdatedAt = log.CreatedAt
	}
	s.logs = append(s.logs, &log)
}

// Logs returns a copy of every stored entry in insertion order.
func (s *Store) Logs() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditLog, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, *l)
	}
	return out
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateAuditLog stores log and assigns its ID and timestamps.
func (s *Store) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.nextID++
	log.ID = s.nextID
	log.CreatedAt = s.now()
	log.UpdatedAt = log.CreatedAt
	stored := *log
	s.logs = append(s.logs, &stored)
	if s.written != nil {
		select {
		case s.written <- &stored:
		default:
		}
	}
	return nil
}

// ListAuditLogs filters, sorts newest first and paginates.
func (s *Store) ListAuditLogs(_ context.Context, f repositories.AuditFilters, limit, offset int) ([]*models.AuditLogWithUser, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}

	matched := make([]*models.AuditLog, 0)
	for _, l := range s.logs {
		if f.EntityType != nil && l.EntityType != *f.EntityType {
			continue
		}
		if f.EntityID != nil && l.EntityID != *f.EntityID {
			continue
		}
		if f.UserID != nil && (l.UserID == nil || *l.UserID != *f.UserID) {
			continue
		}
		matched = append(matched, l)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]*models.AuditLogWithUser, 0, end-offset)
	for _, l := range matched[offset:end] {
		row := &models.AuditLogWithUser{AuditLog: *l}
		if l.UserID != nil {
			if u, ok := s.users[*l.UserID]; ok {
				actor := *u
				row.User = &actor
			}
		}
		out = append(out, row)
	}
	return out, total, nil
}

// DeleteByActionsOlderThan removes entries with one of actions created before cutoff.
func (s *Store) DeleteByActionsOlderThan(_ context.Context, actions []string, cutoff time.Time) (int64, error) {
	set := make(map[string]bool, len(actions))
	for _, a := range actions {
		set[a] = true
	}
	return s.deleteWhere(func(l *models.AuditLog) bool {
		return set[l.Action] && l.CreatedAt.Before(cutoff)
	})
}

// DeleteOlderThan removes every entry created before cutoff.
func (s *Store) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	return s.deleteWhere(func(l *models.AuditLog) bool {
		return l.CreatedAt.Before(cutoff)
	})
}

func (s *Store) deleteWhere(match func(*models.AuditLog) bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	kept := s.logs[:0]
	var n int64
	for _, l := range s.logs {
		if match(l) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	s.logs = kept
	return n, nil
}
