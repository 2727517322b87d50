// log_cleanup.go implements the LogCleanup background job, which enforces the audit log
// retention policy. Two rules run on every sweep: session entries (login, logout,
// login_failed) are purged after a short window, everything else after a long one.
// A failing rule counts as zero deleted rows and never stops the schedule.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/elitarte/elitarte-backend/internal/audit"
	"github.com/elitarte/elitarte-backend/internal/config"
	"github.com/elitarte/elitarte-backend/internal/safego"
	"github.com/elitarte/elitarte-backend/internal/telemetry"
)

const (
	defaultCleanupInterval = 6 * time.Hour
	defaultSessionWindow   = 2 * 24 * time.Hour
	defaultOtherWindow     = 30 * 24 * time.Hour
)

// AuditPurger deletes audit entries by age. *repositories.AuditRepository satisfies it.
type AuditPurger interface {
	DeleteByActionsOlderThan(ctx context.Context, actions []string, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionPolicy holds the two retention windows.
type RetentionPolicy struct {
	SessionWindow time.Duration
	OtherWindow   time.Duration
}

// PolicyFromConfig converts day counts to a policy. Non-positive values fall back
// to the defaults (2 and 30 days).
func PolicyFromConfig(cfg config.RetentionConfig) RetentionPolicy {
	p := RetentionPolicy{
		SessionWindow: time.Duration(cfg.SessionDays) * 24 * time.Hour,
		OtherWindow:   time.Duration(cfg.OtherDays) * 24 * time.Hour,
	}
	if p.SessionWindow <= 0 {
		p.SessionWindow = defaultSessionWindow
	}
	if p.OtherWindow <= 0 {
		p.OtherWindow = defaultOtherWindow
	}
	return p
}

// CleanupResult reports the rows removed by one sweep.
type CleanupResult struct {
	SessionLogs int64 `json:"sessionLogs"`
	OtherLogs   int64 `json:"otherLogs"`
}

// Total returns the number of rows removed by both rules.
func (r CleanupResult) Total() int64 {
	return r.SessionLogs + r.OtherLogs
}

// LogCleanup periodically purges expired audit entries.
type LogCleanup struct {
	store    AuditPurger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	policy   RetentionPolicy
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewLogCleanup creates a LogCleanup from the retention configuration.
// IntervalHours defaults to 6.
func NewLogCleanup(store AuditPurger, cfg config.RetentionConfig) *LogCleanup {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &LogCleanup{
		store:    store,
		interval: interval,
		now:      time.Now,
		policy:   PolicyFromConfig(cfg),
	}
}

// Start launches the sweep loop: one sweep immediately, then one per interval.
// It returns at once. Calling Start while the loop is running is a no-op.
// The loop exits when ctx is cancelled or Stop is called.
func (c *LogCleanup) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.running = true
	c.stopChan = stop
	c.done = done
	c.mu.Unlock()

	log.Printf("Audit log cleanup started (interval: %v)", c.interval)

	safego.Go("audit-log-cleanup", func() {
		defer func() {
			c.mu.Lock()
			if c.stopChan == stop {
				c.running = false
			}
			c.mu.Unlock()
			close(done)
		}()
		c.loop(ctx, stop)
	})
}

func (c *LogCleanup) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.ManualCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			c.ManualCleanup(ctx)
		case <-stop:
			log.Println("Audit log cleanup stopped")
			return
		case <-ctx.Done():
			log.Println("Audit log cleanup context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit and waits for it. It is a no-op when the loop
// is not running. A stopped LogCleanup may be started again.
func (c *LogCleanup) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	done := c.done
	c.mu.Unlock()

	<-done
}

// Running reports whether the sweep loop is active.
func (c *LogCleanup) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Policy returns the retention windows in effect.
func (c *LogCleanup) Policy() RetentionPolicy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// SetPolicy replaces the retention windows used by subsequent sweeps.
// Non-positive windows keep their current value.
func (c *LogCleanup) SetPolicy(p RetentionPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.SessionWindow > 0 {
		c.policy.SessionWindow = p.SessionWindow
	}
	if p.OtherWindow > 0 {
		c.policy.OtherWindow = p.OtherWindow
	}
	log.Printf("Audit log retention updated (session: %v, other: %v)", c.policy.SessionWindow, c.policy.OtherWindow)
}

// ManualCleanup runs both retention rules once and returns the rows removed.
// The session rule runs first. Errors are logged and count as zero.
// It is safe to call concurrently with the scheduled loop.
func (c *LogCleanup) ManualCleanup(ctx context.Context) CleanupResult {
	start := time.Now()
	policy := c.Policy()
	now := c.now()
	failed := false

	var result CleanupResult

	n, err := c.store.DeleteByActionsOlderThan(ctx, audit.SessionActions(), now.Add(-policy.SessionWindow))
	if err != nil {
		log.Printf("Audit log cleanup: failed to purge session logs: %v", err)
		failed = true
	} else {
		result.SessionLogs = n
	}

	n, err = c.store.DeleteOlderThan(ctx, now.Add(-policy.OtherWindow))
	if err != nil {
		log.Printf("Audit log cleanup: failed to purge logs: %v", err)
		failed = true
	} else {
		result.OtherLogs = n
	}

	telemetry.AuditCleanupDeletedTotal.WithLabelValues("session").Add(float64(result.SessionLogs))
	telemetry.AuditCleanupDeletedTotal.WithLabelValues("general").Add(float64(result.OtherLogs))
	telemetry.AuditCleanupDuration.Observe(time.Since(start).Seconds())
	if failed {
		telemetry.AuditCleanupRunsTotal.WithLabelValues("error").Inc()
	} else {
		telemetry.AuditCleanupRunsTotal.WithLabelValues("success").Inc()
	}

	if result.Total() > 0 {
		log.Printf("Audit log cleanup: removed %d session and %d other entries", result.SessionLogs, result.OtherLogs)
	}
	return result
}
