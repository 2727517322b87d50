package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN / ServerConfig.GetAddress
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "elitarte",
				Password: "secret",
				Name:     "elitarte",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=elitarte password=secret dbname=elitarte sslmode=require",
		},
		{
			name: "empty password",
			cfg: DatabaseConfig{
				Host:    "db.internal",
				Port:    5433,
				User:    "app",
				Name:    "arts",
				SSLMode: "disable",
			},
			want: "host=db.internal port=5433 user=app password= dbname=arts sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"empty host", ServerConfig{Host: "", Port: 3000}, ":3000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetAddress(); got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Host: "localhost", Name: "elitarte", User: "elitarte"},
		Logging:  LoggingConfig{Level: "info"},
		Retention: RetentionConfig{
			IntervalHours: 6,
			SessionDays:   2,
			OtherDays:     30,
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid minimal config passes", func(t *testing.T) {
		assert.NoError(t, minimalValidConfig().Validate())
	})

	t.Run("invalid server port", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing database host", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Database.Host = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("tls without cert", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Security.TLS.Enabled = true
		cfg.Security.TLS.KeyFile = "key.pem"
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative retention window", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Retention.SessionDays = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("webhook shipper without url", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "webhook", Webhook: &AuditWebhookConfig{}}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("disabled shipper is not validated", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Audit.Shippers = []AuditShipperConfig{{Enabled: false, Type: "syslog"}}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown shipper type", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "syslog"}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Logging.Level = "verbose"
		assert.Error(t, cfg.Validate())
	})
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "error reading config file"), "unexpected error: %v", err)
}

func TestLoad_YAMLAndRetentionDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  port: 9000\nretention:\n  other_days: 45\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 45, cfg.Retention.OtherDays)
	assert.Equal(t, 2, cfg.Retention.SessionDays)
	assert.Equal(t, 6, cfg.Retention.IntervalHours)
	assert.True(t, cfg.Audit.Enabled)
	assert.False(t, cfg.Audit.SkipFailedRequests, "failed mutations are recorded by default")
	assert.Equal(t, int64(1<<20), cfg.Audit.MaxBodyBytes)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retention:\n  session_days: 5\n"), 0600))

	t.Setenv("ELITARTE_RETENTION_SESSION_DAYS", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Retention.SessionDays)
}

// ---------------------------------------------------------------------------
// expandEnv
// ---------------------------------------------------------------------------

func TestExpandEnv(t *testing.T) {
	t.Setenv("CONFIG_TEST_SECRET", "super-secret")
	if got := expandEnv("${CONFIG_TEST_SECRET}"); got != "super-secret" {
		t.Errorf("expandEnv() = %q, want %q", got, "super-secret")
	}
	if got := expandEnv("no-vars-here"); got != "no-vars-here" {
		t.Errorf("expandEnv() = %q, want passthrough", got)
	}
}
