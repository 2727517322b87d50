// Package api wires together all HTTP routes for the Elit'Arte backend.
//
// Route grouping:
//   - /health, /ready and /version are public probes.
//   - /api/v1/auth/login is public but rate limited with the stricter auth limits.
//   - Everything else under /api/v1/ requires a bearer token; user mutations and the
//     audit-wide query and cleanup additionally require the admin role.
//
// The users group is wrapped by the audit capture middleware so every successful
// create, update and delete on a user lands in the audit trail.
package api

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/elitarte/elitarte-backend/internal/api/admin"
	"github.com/elitarte/elitarte-backend/internal/audit"
	"github.com/elitarte/elitarte-backend/internal/auth"
	"github.com/elitarte/elitarte-backend/internal/config"
	"github.com/elitarte/elitarte-backend/internal/db/models"
	"github.com/elitarte/elitarte-backend/internal/db/repositories"
	"github.com/elitarte/elitarte-backend/internal/jobs"
	"github.com/elitarte/elitarte-backend/internal/middleware"
)

// Version is reported by /version and the CLI
const Version = "0.1.0"

const limiterIdleTTL = 10 * time.Minute

// Dependencies are the long-lived collaborators built by cmd/server.
type Dependencies struct {
	DB      *sqlx.DB
	Audit   *audit.Service
	Cleanup *jobs.LogCleanup
	Tokens  *auth.TokenManager
	// Redis is optional; when set, rate limits are shared across replicas.
	Redis *redis.Client
}

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	cleanup       *jobs.LogCleanup
	audit         *audit.Service
	localLimiters []*middleware.LocalLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.cleanup != nil {
		bg.cleanup.Stop()
	}
	for _, l := range bg.localLimiters {
		l.Stop()
	}
	if bg.audit != nil {
		if err := bg.audit.Close(); err != nil {
			slog.Warn("failed to close audit shippers", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	bg := &BackgroundServices{cleanup: deps.Cleanup, audit: deps.Audit}

	if deps.Cleanup != nil && cfg.Retention.Enabled {
		deps.Cleanup.Start(context.Background())
	}

	generalLimiter, authLimiter := newLimiters(cfg, deps.Redis, bg)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORS))

	router.GET("/health", healthCheckHandler(deps.DB))
	router.GET("/ready", readinessHandler(deps.DB, deps.Cleanup))
	router.GET("/version", versionHandler())

	userRepo := repositories.NewUserRepository(deps.DB)
	authMW := middleware.AuthMiddleware(deps.Tokens, userRepo)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	authHandlers := admin.NewAuthHandlers(deps.DB, deps.Tokens, deps.Audit)
	userHandlers := admin.NewUserHandlers(deps.DB, deps.Audit)
	auditHandlers := admin.NewAuditLogHandlers(deps.Audit, deps.Cleanup)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		login := []gin.HandlerFunc{authHandlers.LoginHandler()}
		if authLimiter != nil {
			login = append([]gin.HandlerFunc{middleware.RateLimitMiddleware(authLimiter)}, login...)
		}
		authGroup.POST("/login", login...)
		authGroup.POST("/logout", authMW, authHandlers.LogoutHandler())
		authGroup.GET("/me", authMW, authHandlers.MeHandler())
	}

	protected := v1.Group("")
	protected.Use(authMW)
	if generalLimiter != nil {
		protected.Use(middleware.RateLimitMiddleware(generalLimiter))
	}

	users := protected.Group("/users")
	users.Use(middleware.AuditMiddleware("user", deps.Audit, &cfg.Audit))
	{
		users.GET("", adminOnly, userHandlers.ListUsersHandler())
		users.GET("/:id", userHandlers.GetUserHandler())
		users.POST("", adminOnly, userHandlers.CreateUserHandler())
		users.PUT("/:id", adminOnly, userHandlers.UpdateUserHandler())
		users.PATCH("/:id", adminOnly, userHandlers.UpdateUserHandler())
		users.DELETE("/:id", adminOnly, userHandlers.DeleteUserHandler())
	}

	auditLogs := protected.Group("/audit-logs")
	{
		auditLogs.GET("", adminOnly, auditHandlers.ListAuditLogsHandler())
		auditLogs.GET("/:entityType/:entityId", auditHandlers.EntityAuditLogsHandler())
		auditLogs.POST("/cleanup/manual", adminOnly, auditHandlers.ManualCleanupHandler())
	}

	return router, bg
}

// newLimiters builds the general and login limiters. Both are nil when rate
// limiting is disabled. Local limiters are registered with bg for shutdown.
func newLimiters(cfg *config.Config, rdb *redis.Client, bg *BackgroundServices) (general, login middleware.Limiter) {
	if !cfg.Security.RateLimiting.Enabled {
		return nil, nil
	}

	generalCfg := middleware.RateLimitConfigFrom(cfg.Security.RateLimiting)
	authCfg := middleware.AuthRateLimitConfig()

	if rdb != nil {
		log.Printf("Rate limiting backed by Redis at %s", cfg.Redis.Addr)
		return middleware.NewRedisLimiter(rdb, generalCfg, "ratelimit:api:"),
			middleware.NewRedisLimiter(rdb, authCfg, "ratelimit:auth:")
	}

	g := middleware.NewLocalLimiter(generalCfg, limiterIdleTTL)
	a := middleware.NewLocalLimiter(authCfg, limiterIdleTTL)
	bg.localLimiters = append(bg.localLimiters, g, a)
	return g, a
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database connectivity and reports the retention job state.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service. The cleanup job
// state is informational and never fails the probe.
func readinessHandler(db pinger, cleanup *jobs.LogCleanup) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		switch {
		case cleanup == nil:
			checks["audit_cleanup"] = "disabled"
		case cleanup.Running():
			checks["audit_cleanup"] = "running"
		default:
			checks["audit_cleanup"] = "stopped"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}
