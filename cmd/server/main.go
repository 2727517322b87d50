// @title           Elit'Arte API
// @version         1.0.0
// @description     Elit'Arte platform backend: user management, authentication and the audit trail.
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  Bearer
// @in                          header
// @name                         Authorization
// @description                  "JWT token: 'Bearer {token}'"
//
// @tag.name         System
// @tag.description  Health, readiness and version endpoints.
//
// @tag.name         Observability
// @tag.description  Prometheus metrics are served on a dedicated side-channel port (default: 9090) separate from the main API server. Configure the port with ELITARTE_TELEMETRY_METRICS_PROMETHEUS_PORT. The endpoint path is always GET /metrics.

// Package main is the entry point for the Elit'Arte server binary.
// It dispatches its subcommands (serve, migrate, cleanup and version) via a
// switch on os.Args so the binary's full CLI surface is readable in one place
// without requiring a cobra dependency. The serve command runs auto-migration on
// startup so freshly deployed containers never need a separate migration step.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/elitarte/elitarte-backend/internal/api"
	"github.com/elitarte/elitarte-backend/internal/audit"
	"github.com/elitarte/elitarte-backend/internal/auth"
	"github.com/elitarte/elitarte-backend/internal/config"
	"github.com/elitarte/elitarte-backend/internal/db"
	"github.com/elitarte/elitarte-backend/internal/db/repositories"
	"github.com/elitarte/elitarte-backend/internal/jobs"
	"github.com/elitarte/elitarte-backend/internal/telemetry"
)

const dbStatsInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	configPath := os.Getenv("CONFIG_PATH")

	switch command {
	case "serve":
		return serve(configPath)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runMigrations(cfg, os.Args[2])
	case "cleanup":
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runCleanup(cfg)
	case "version":
		fmt.Printf("Elit'Arte backend v%s\n", api.Version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, cleanup, version", command)
	}
}

func connect(cfg *config.Config) (*sqlx.DB, error) {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}

func serve(configPath string) error {
	// The cleanup job is created after the config is loaded; reloads arriving
	// before that are covered by the initial load.
	var liveCleanup atomic.Pointer[jobs.LogCleanup]
	cfg, _, err := config.Watch(configPath, func(next *config.Config) {
		if c := liveCleanup.Load(); c != nil {
			c.SetPolicy(jobs.PolicyFromConfig(next.Retention))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialise structured logger as early as possible so all subsequent log output
	// uses the configured format (json / text) and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	secret, err := auth.SecretFromEnv()
	if err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}
	tokens := auth.NewTokenManager(secret, cfg.Auth.TokenTTL)

	log.Printf("Database config: host=%s, port=%d, user=%s, dbname=%s, sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Name, cfg.Database.SSLMode)

	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Println("Connected to database successfully")

	ctx, stopCollectors := context.WithCancel(context.Background())
	defer stopCollectors()
	telemetry.StartDBStatsCollector(ctx, database.DB, dbStatsInterval)

	log.Println("Running database migrations...")
	if err := db.RunMigrations(database.DB, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if version, dirty, err := db.GetMigrationVersion(database.DB); err != nil {
		log.Printf("Warning: failed to get migration version: %v", err)
	} else {
		log.Printf("Database schema version: %d (dirty: %v)", version, dirty)
	}

	shipper, err := audit.NewMultiShipper(cfg.Audit.Shippers)
	if err != nil {
		return fmt.Errorf("failed to configure audit shippers: %w", err)
	}
	var auditShipper audit.Shipper
	if shipper.Len() > 0 {
		auditShipper = shipper
		log.Printf("Audit log shipping enabled (%d destinations)", shipper.Len())
	}

	auditRepo := repositories.NewAuditRepository(database)
	auditSvc := audit.NewService(auditRepo, auditShipper)
	cleanup := jobs.NewLogCleanup(auditRepo, cfg.Retention)
	liveCleanup.Store(cleanup)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, rate limiting fails open until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
	}

	if cfg.Telemetry.Metrics.Enabled {
		startMetricsServer(cfg.Telemetry.Metrics.PrometheusPort)
	}

	router, bgServices := api.NewRouter(cfg, api.Dependencies{
		DB:      database,
		Audit:   auditSvc,
		Cleanup: cleanup,
		Tokens:  tokens,
		Redis:   rdb,
	})

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Starting server on %s", cfg.Server.GetAddress())
		log.Printf("Base URL: %s", cfg.Server.BaseURL)
		log.Printf("Audit capture enabled: %v, retention sweeps enabled: %v", cfg.Audit.Enabled, cfg.Retention.Enabled)

		var err error
		if cfg.Security.TLS.Enabled {
			log.Printf("TLS enabled: cert=%s, key=%s", cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Stop the cleanup loop, rate limiter sweeps and audit shippers
	bgServices.Shutdown()

	log.Println("Server stopped gracefully")
	return nil
}

// startMetricsServer serves /metrics on a dedicated port so it is not reachable
// through the public API ingress path.
func startMetricsServer(port int) {
	metricsAddr := fmt.Sprintf(":%d", port)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
		srv := &http.Server{
			Addr:         metricsAddr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	log.Printf("Running migrations: %s", direction)

	if err := db.RunMigrations(database.DB, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", version, dirty)
	return nil
}

// runCleanup applies the retention policy once and prints what was removed.
func runCleanup(cfg *config.Config) error {
	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	cleanup := jobs.NewLogCleanup(repositories.NewAuditRepository(database), cfg.Retention)
	policy := cleanup.Policy()
	log.Printf("Running audit log cleanup (session window: %v, other window: %v)", policy.SessionWindow, policy.OtherWindow)

	res := cleanup.ManualCleanup(context.Background())
	fmt.Printf("Deleted %d session logs and %d other logs (%d total)\n", res.SessionLogs, res.OtherLogs, res.Total())
	return nil
}
