package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elitarte/elitarte-backend/internal/config"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("limiter unavailable")
}

func newRateLimitRouter(l Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(l))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestRateLimitConfigFrom(t *testing.T) {
	got := RateLimitConfigFrom(config.RateLimitingConfig{})
	assert.Equal(t, DefaultRateLimitConfig(), got)

	got = RateLimitConfigFrom(config.RateLimitingConfig{RequestsPerMinute: 30, Burst: 3})
	assert.Equal(t, RateLimitConfig{RequestsPerMinute: 30, BurstSize: 3}, got)
}

// ---------------------------------------------------------------------------
// LocalLimiter
// ---------------------------------------------------------------------------

func TestLocalLimiter_BurstThenReject(t *testing.T) {
	l := NewLocalLimiter(RateLimitConfig{RequestsPerMinute: 1, BurstSize: 2}, 0)
	defer l.Stop()
	r := newRateLimitRouter(l)

	assert.Equal(t, http.StatusOK, hit(r, "192.0.2.1").Code)
	assert.Equal(t, http.StatusOK, hit(r, "192.0.2.1").Code)

	w := hit(r, "192.0.2.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, hit(r, "192.0.2.2").Code)
}

func TestLocalLimiter_RemainingDecreases(t *testing.T) {
	l := NewLocalLimiter(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 5}, 0)
	defer l.Stop()

	first, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	second, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)

	assert.True(t, first.Allowed)
	assert.True(t, second.Allowed)
	assert.Less(t, second.Remaining, first.Remaining+1)
}

func TestLocalLimiter_EvictIdle(t *testing.T) {
	l := NewLocalLimiter(DefaultRateLimitConfig(), 0)
	defer l.Stop()

	_, _ = l.Allow(context.Background(), "old")
	l.evictIdle(time.Now().Add(time.Second))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.clients)
}

func TestLocalLimiter_StopTwice(t *testing.T) {
	l := NewLocalLimiter(DefaultRateLimitConfig(), time.Minute)
	assert.NotPanics(t, func() {
		l.Stop()
		l.Stop()
	})
}

// ---------------------------------------------------------------------------
// Fail open
// ---------------------------------------------------------------------------

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	w := hit(newRateLimitRouter(failingLimiter{}), "192.0.2.1")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRedisLimiter_UnreachableFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	l := NewRedisLimiter(rdb, DefaultRateLimitConfig(), "test:")
	_, err := l.Allow(context.Background(), "k")
	assert.Error(t, err)

	assert.Equal(t, http.StatusOK, hit(newRateLimitRouter(l), "192.0.2.1").Code)
}

// ---------------------------------------------------------------------------
// Key selection
// ---------------------------------------------------------------------------

func TestGetRateLimitKey(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "ip:192.0.2.7", getRateLimitKey(c))

	c.Set(UserIDKey, "u1")
	assert.Equal(t, "user:u1", getRateLimitKey(c))
}
