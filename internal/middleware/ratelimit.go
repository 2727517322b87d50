// ratelimit.go provides Gin middleware that enforces per-client request limits, returning
// 429 responses when a client exceeds its allowance. Limits are kept in process with
// golang.org/x/time/rate, or in Redis when several replicas must share them.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/elitarte/elitarte-backend/internal/config"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate allowed per client
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
}

// DefaultRateLimitConfig returns the general API limits
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 200, BurstSize: 50}
}

// AuthRateLimitConfig returns stricter limits for login endpoints
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 10, BurstSize: 5}
}

// RateLimitConfigFrom converts the security.rate_limiting section, falling back
// to DefaultRateLimitConfig for unset values.
func RateLimitConfigFrom(cfg config.RateLimitingConfig) RateLimitConfig {
	out := DefaultRateLimitConfig()
	if cfg.RequestsPerMinute > 0 {
		out.RequestsPerMinute = cfg.RequestsPerMinute
	}
	if cfg.Burst > 0 {
		out.BurstSize = cfg.Burst
	}
	return out
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the client identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// clientLimiter is a token bucket for one client
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps one token bucket per client in memory
type LocalLimiter struct {
	config   RateLimitConfig
	limit    rate.Limit
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLocalLimiter creates a LocalLimiter. Buckets idle for idleTTL are dropped
// by a background sweep; call Stop to end it.
func NewLocalLimiter(cfg RateLimitConfig, idleTTL time.Duration) *LocalLimiter {
	l := &LocalLimiter{
		config:  cfg,
		limit:   rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}
	if idleTTL > 0 {
		go l.cleanup(idleTTL)
	}
	return l
}

func (l *LocalLimiter) cleanup(idleTTL time.Duration) {
	ticker := time.NewTicker(idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle(time.Now().Add(-idleTTL))
		case <-l.stopCh:
			return
		}
	}
}

func (l *LocalLimiter) evictIdle(before time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if c.lastSeen.Before(before) {
			delete(l.clients, key)
		}
	}
}

// Stop ends the idle sweep
func (l *LocalLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Allow takes one token from key's bucket
func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := time.Now()

	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.config.BurstSize)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	d := Decision{Limit: l.config.RequestsPerMinute}
	r := c.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 || !r.OK() {
		r.CancelAt(now)
		d.RetryAfter = delay
		return d, nil
	}
	d.Allowed = true
	d.Remaining = int(math.Max(0, math.Floor(c.limiter.TokensAt(now))))
	return d, nil
}

// RedisLimiter shares limits across replicas through Redis (GCRA via redis_rate)
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisLimiter creates a RedisLimiter on rdb
func NewRedisLimiter(rdb *redis.Client, cfg RateLimitConfig, prefix string) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   cfg.RequestsPerMinute,
			Burst:  cfg.BurstSize,
			Period: time.Minute,
		},
		prefix: prefix,
	}
}

// Allow takes one token from key's bucket in Redis
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := l.limiter.Allow(ctx, l.prefix+key, l.limit)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:    res.Allowed > 0,
		Limit:      l.limit.Rate,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// RateLimitMiddleware rejects requests over the limit with 429. When the limiter
// itself fails (e.g. Redis unreachable) the request is let through.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		d, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       "Rate limit exceeded",
				"retry_after": retry,
			})
			return
		}

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting.
// Priority: user_id > IP address
func getRateLimitKey(c *gin.Context) string {
	if id := c.GetString(UserIDKey); id != "" {
		return "user:" + id
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
