package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/elitarte/elitarte-backend/internal/config"
	"github.com/elitarte/elitarte-backend/internal/db/models"
	"github.com/elitarte/elitarte-backend/internal/telemetry"
)

// Shipper forwards stored audit entries to an external destination.
type Shipper interface {
	// Ship delivers one entry
	Ship(ctx context.Context, entry *models.AuditLog) error
	// Close releases any resources
	Close() error
}

// namedShipper pairs a shipper with its configured type for metrics.
type namedShipper struct {
	kind    string
	shipper Shipper
}

// MultiShipper fans an entry out to every configured destination
type MultiShipper struct {
	shippers []namedShipper
	mu       sync.RWMutex
}

// NewMultiShipper builds a MultiShipper from the enabled entries of configs.
func NewMultiShipper(configs []config.AuditShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{}

	for i, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		var shipper Shipper
		var err error

		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("audit shipper %d: webhook config is required", i)
			}
			shipper = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("audit shipper %d: file config is required", i)
			}
			shipper, err = NewFileShipper(cfg.File)
		default:
			return nil, fmt.Errorf("audit shipper %d: unknown type %q", i, cfg.Type)
		}

		if err != nil {
			ms.Close()
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}

		ms.shippers = append(ms.shippers, namedShipper{kind: cfg.Type, shipper: shipper})
	}

	return ms, nil
}

// Len returns the number of active destinations
func (ms *MultiShipper) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.shippers)
}

// Ship sends entry to every destination. A failing destination does not stop
// the others; the last error is returned.
func (ms *MultiShipper) Ship(ctx context.Context, entry *models.AuditLog) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var lastErr error
	for _, s := range ms.shippers {
		if err := s.shipper.Ship(ctx, entry); err != nil {
			lastErr = err
			telemetry.AuditShipErrorsTotal.WithLabelValues(s.kind).Inc()
			slog.Warn("audit shipper error", "shipper", s.kind, "error", err)
		}
	}
	return lastErr
}

// Close closes every destination
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var lastErr error
	for _, s := range ms.shippers {
		if err := s.shipper.Close(); err != nil {
			lastErr = err
		}
	}
	ms.shippers = nil
	return lastErr
}

// WebhookShipper POSTs each entry as JSON to a URL
type WebhookShipper struct {
	cfg    *config.AuditWebhookConfig
	client *http.Client
}

// NewWebhookShipper creates a webhook shipper. A zero timeout means 10 seconds.
func NewWebhookShipper(cfg *config.AuditWebhookConfig) *WebhookShipper {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookShipper{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Ship sends entry to the webhook
func (ws *WebhookShipper) Ship(ctx context.Context, entry *models.AuditLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op; the HTTP client holds no per-shipper resources.
func (ws *WebhookShipper) Close() error { return nil }

// FileShipper appends entries as JSON lines to a local file, rotating it by size
type FileShipper struct {
	cfg  *config.AuditFileConfig
	file *os.File
	mu   sync.Mutex
}

// NewFileShipper opens (or creates) cfg.Path for appending
func NewFileShipper(cfg *config.AuditFileConfig) (*FileShipper, error) {
	file, err := openAppend(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &FileShipper{cfg: cfg, file: file}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// Ship writes entry as one line
func (fs *FileShipper) Ship(_ context.Context, entry *models.AuditLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.file == nil {
		return fmt.Errorf("audit log file %s is closed", fs.cfg.Path)
	}

	if fs.cfg.MaxSizeMB > 0 {
		info, err := fs.file.Stat()
		if err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				return fmt.Errorf("failed to rotate audit log: %w", err)
			}
		}
	}

	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// rotate shifts path.N to path.N+1, moves the live file to path.1 and reopens
// path. Backups beyond MaxBackups are removed. Callers hold fs.mu.
func (fs *FileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}
	fs.file = nil

	path := fs.cfg.Path
	if fs.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", path, fs.cfg.MaxBackups))
		for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
			_ = os.Rename(fmt.Sprintf("%s.%d", path, i), fmt.Sprintf("%s.%d", path, i+1))
		}
		_ = os.Rename(path, path+".1")
	} else {
		_ = os.Remove(path)
	}

	file, err := openAppend(path)
	if err != nil {
		return err
	}
	fs.file = file
	return nil
}

// Close closes the file
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}
