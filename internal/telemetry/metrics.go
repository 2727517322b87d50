// Package telemetry provides application-level observability for the Elit'Arte backend.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<ELITARTE_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Audit record writes and external shipping failures
//   - Audit log retention sweeps (runs, deleted rows, duration)
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/users/:id)
// rather than the raw request URL so user-supplied path segments cannot create
// unbounded label sets.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Audit write metrics.
//
// AuditWritesTotal counts every attempted insert into the audit log, labelled
// result="success" or result="error". A non-zero error rate means actions are
// happening without a trace; alert on it.
//
// Example PromQL queries:
//   - Write failure ratio: sum(rate(audit_writes_total{result="error"}[15m])) / sum(rate(audit_writes_total[15m]))
//
// AuditShipErrorsTotal counts failed deliveries to external sinks, by shipper type.
var (
	AuditWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_writes_total",
			Help: "Total number of audit log insert attempts, by result.",
		},
		[]string{"result"},
	)

	AuditShipErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_ship_errors_total",
			Help: "Total number of audit entries that failed to reach an external sink, by shipper type.",
		},
		[]string{"shipper"},
	)
)

// Retention metrics, recorded by the log cleanup job.
//
// AuditCleanupDeletedTotal has label {policy}: "session" for the short window
// applied to login/logout records, "general" for everything else.
//
// Example PromQL queries:
//   - Rows purged per day:   sum by (policy) (increase(audit_cleanup_deleted_total[24h]))
//   - Alert on failed sweeps: increase(audit_cleanup_runs_total{result="error"}[12h]) > 0
var (
	AuditCleanupDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_cleanup_deleted_total",
			Help: "Total number of audit log rows removed by retention sweeps, by policy.",
		},
		[]string{"policy"},
	)

	AuditCleanupRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_cleanup_runs_total",
			Help: "Total number of retention sweeps, by result.",
		},
		[]string{"result"},
	)

	AuditCleanupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_cleanup_duration_seconds",
			Help:    "Duration of a single retention sweep.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// DBOpenConnections tracks the number of open connections held by the sql.DB pool.
// It is sampled every 30 seconds by StartDBStatsCollector rather than per-request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples sql.DB pool statistics every interval until ctx is
// cancelled or the database becomes unreachable.
//
//	telemetry.StartDBStatsCollector(ctx, database.DB, 30*time.Second)
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}

// CounterValue reads the current value of cv for the series matching labels.
// It returns 0 when no such series has been observed.
func CounterValue(cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	ch := make(chan prometheus.Metric, 32)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()
	var value float64
	for m := range ch {
		var dm dto.Metric
		if err := m.Write(&dm); err != nil {
			continue
		}
		if labelsMatch(dm.GetLabel(), labels) {
			value = dm.GetCounter().GetValue()
		}
	}
	return value
}

func labelsMatch(got []*dto.LabelPair, want prometheus.Labels) bool {
	for k, v := range want {
		found := false
		for _, lp := range got {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
