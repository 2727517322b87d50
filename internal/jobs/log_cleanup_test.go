package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elitarte/elitarte-backend/internal/audit"
	"github.com/elitarte/elitarte-backend/internal/audit/audittest"
	"github.com/elitarte/elitarte-backend/internal/config"
	"github.com/elitarte/elitarte-backend/internal/db/models"
)

const day = 24 * time.Hour

var defaultRetention = config.RetentionConfig{Enabled: true, IntervalHours: 6, SessionDays: 2, OtherDays: 30}

// countingPurger counts calls and can fail either rule.
type countingPurger struct {
	sessionCalls int32
	otherCalls   int32
	sessionErr   error
	otherErr     error
	lastActions  []string
}

func (p *countingPurger) DeleteByActionsOlderThan(_ context.Context, actions []string, _ time.Time) (int64, error) {
	atomic.AddInt32(&p.sessionCalls, 1)
	p.lastActions = actions
	if p.sessionErr != nil {
		return 0, p.sessionErr
	}
	return 3, nil
}

func (p *countingPurger) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	atomic.AddInt32(&p.otherCalls, 1)
	if p.otherErr != nil {
		return 0, p.otherErr
	}
	return 5, nil
}

func newFixedCleanup(store AuditPurger, now time.Time) *LogCleanup {
	c := NewLogCleanup(store, defaultRetention)
	c.now = func() time.Time { return now }
	return c
}

// ---------------------------------------------------------------------------
// Retention rules
// ---------------------------------------------------------------------------

func TestManualCleanup_GeneralRule(t *testing.T) {
	now := time.Now()
	store := audittest.New()
	for _, age := range []time.Duration{0, 3 * day, 40 * day} {
		store.Seed(models.AuditLog{Action: "USER_UPDATE", EntityType: "user", EntityID: "1", CreatedAt: now.Add(-age)})
	}

	res := newFixedCleanup(store, now).ManualCleanup(context.Background())
	assert.Equal(t, CleanupResult{SessionLogs: 0, OtherLogs: 1}, res)

	svc := audit.NewService(store, nil)
	user := "user"
	page := svc.GetLogs(context.Background(), audit.Query{EntityType: &user})
	assert.Equal(t, 2, page.Count)
	assert.Len(t, page.Data, 2)
}

func TestManualCleanup_SessionRule(t *testing.T) {
	now := time.Now()
	store := audittest.New()
	store.Seed(models.AuditLog{Action: audit.ActionLoginFailed, EntityType: "auth", CreatedAt: now.Add(-1 * day)})
	store.Seed(models.AuditLog{Action: audit.ActionLoginFailed, EntityType: "auth", CreatedAt: now.Add(-3 * day)})
	store.Seed(models.AuditLog{Action: audit.ActionLogin, EntityType: "auth", CreatedAt: now.Add(-time.Hour)})

	res := newFixedCleanup(store, now).ManualCleanup(context.Background())
	assert.Equal(t, int64(1), res.SessionLogs)
	assert.Equal(t, int64(0), res.OtherLogs)

	remaining := store.Logs()
	require.Len(t, remaining, 2)
	for _, l := range remaining {
		assert.True(t, l.CreatedAt.After(now.Add(-2*day)), "entry %d should have been kept", l.ID)
	}
}

func TestManualCleanup_WindowsAreIndependent(t *testing.T) {
	now := time.Now()
	store := audittest.New()
	// Non-session entry at 10 days survives; session entry at 10 days does not.
	store.Seed(models.AuditLog{Action: "EVENT_CREATE", EntityType: "event", EntityID: "e", CreatedAt: now.Add(-10 * day)})
	store.Seed(models.AuditLog{Action: audit.ActionLogout, EntityType: "auth", CreatedAt: now.Add(-10 * day)})
	// Session entry older than both windows is counted by the session rule only.
	store.Seed(models.AuditLog{Action: audit.ActionLogin, EntityType: "auth", CreatedAt: now.Add(-45 * day)})

	res := newFixedCleanup(store, now).ManualCleanup(context.Background())
	assert.Equal(t, int64(2), res.SessionLogs)
	assert.Equal(t, int64(0), res.OtherLogs)
	assert.Equal(t, int64(2), res.Total())

	remaining := store.Logs()
	require.Len(t, remaining, 1)
	assert.Equal(t, "EVENT_CREATE", remaining[0].Action)
}

func TestManualCleanup_Idempotent(t *testing.T) {
	now := time.Now()
	store := audittest.New()
	store.Seed(models.AuditLog{Action: "USER_CREATE", CreatedAt: now.Add(-31 * day)})

	c := newFixedCleanup(store, now)
	first := c.ManualCleanup(context.Background())
	second := c.ManualCleanup(context.Background())
	assert.Equal(t, int64(1), first.Total())
	assert.Equal(t, int64(0), second.Total())
}

func TestManualCleanup_ErrorsCountAsZero(t *testing.T) {
	p := &countingPurger{sessionErr: errors.New("deadlock detected")}
	res := NewLogCleanup(p, defaultRetention).ManualCleanup(context.Background())
	assert.Equal(t, int64(0), res.SessionLogs)
	assert.Equal(t, int64(5), res.OtherLogs, "general rule still runs after a session failure")

	p = &countingPurger{otherErr: errors.New("timeout")}
	res = NewLogCleanup(p, defaultRetention).ManualCleanup(context.Background())
	assert.Equal(t, CleanupResult{SessionLogs: 3, OtherLogs: 0}, res)
}

func TestManualCleanup_UsesSessionActions(t *testing.T) {
	p := &countingPurger{}
	NewLogCleanup(p, defaultRetention).ManualCleanup(context.Background())
	assert.ElementsMatch(t, []string{"login", "logout", "login_failed"}, p.lastActions)
}

// ---------------------------------------------------------------------------
// Policy
// ---------------------------------------------------------------------------

func TestPolicyFromConfig_Defaults(t *testing.T) {
	p := PolicyFromConfig(config.RetentionConfig{})
	assert.Equal(t, 2*day, p.SessionWindow)
	assert.Equal(t, 30*day, p.OtherWindow)

	p = PolicyFromConfig(config.RetentionConfig{SessionDays: 7, OtherDays: 90})
	assert.Equal(t, 7*day, p.SessionWindow)
	assert.Equal(t, 90*day, p.OtherWindow)
}

func TestNewLogCleanup_DefaultInterval(t *testing.T) {
	c := NewLogCleanup(&countingPurger{}, config.RetentionConfig{})
	assert.Equal(t, 6*time.Hour, c.interval)
}

func TestSetPolicy_AppliesToNextSweep(t *testing.T) {
	now := time.Now()
	store := audittest.New()
	store.Seed(models.AuditLog{Action: "USER_CREATE", CreatedAt: now.Add(-10 * day)})

	c := newFixedCleanup(store, now)
	assert.Equal(t, int64(0), c.ManualCleanup(context.Background()).Total())

	c.SetPolicy(RetentionPolicy{OtherWindow: 7 * day})
	assert.Equal(t, 2*day, c.Policy().SessionWindow, "zero window keeps current value")
	assert.Equal(t, int64(1), c.ManualCleanup(context.Background()).OtherLogs)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestStart_SweepsImmediately(t *testing.T) {
	p := &countingPurger{}
	c := NewLogCleanup(p, defaultRetention)

	c.Start(context.Background())
	require.True(t, c.Running())
	c.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&p.sessionCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.otherCalls))
	assert.False(t, c.Running())
}

func TestStart_Idempotent(t *testing.T) {
	p := &countingPurger{}
	c := NewLogCleanup(p, defaultRetention)

	c.Start(context.Background())
	c.Start(context.Background())
	c.Start(context.Background())
	c.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&p.sessionCalls), "only one loop may run")
}

func TestStop_NoopWhenStopped(t *testing.T) {
	c := NewLogCleanup(&countingPurger{}, defaultRetention)
	assert.NotPanics(t, func() {
		c.Stop()
		c.Stop()
	})
}

func TestStart_Restartable(t *testing.T) {
	p := &countingPurger{}
	c := NewLogCleanup(p, defaultRetention)

	c.Start(context.Background())
	c.Stop()
	c.Start(context.Background())
	c.Stop()

	assert.Equal(t, int32(2), atomic.LoadInt32(&p.sessionCalls))
}

func TestStart_ContextCancelStopsLoop(t *testing.T) {
	c := NewLogCleanup(&countingPurger{}, defaultRetention)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()

	require.Eventually(t, func() bool { return !c.Running() }, 2*time.Second, 10*time.Millisecond)

	// A cancelled loop can be started again.
	c.Start(context.Background())
	assert.True(t, c.Running())
	c.Stop()
}

func TestStart_TicksOnInterval(t *testing.T) {
	p := &countingPurger{}
	c := NewLogCleanup(p, defaultRetention)
	c.interval = 10 * time.Millisecond

	c.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&p.otherCalls) >= 3 }, 2*time.Second, 5*time.Millisecond)
	c.Stop()
}
