package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestNewLogger_JSONFormat_ProducesValidJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "json", "info")
	logger.Info("audit entry recorded", "action", "USER_CREATE")

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &obj))
	assert.Equal(t, "audit entry recorded", obj["msg"])
	assert.Equal(t, "USER_CREATE", obj["action"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "text", "info")
	logger.Info("hello", "k", "v")

	out := buf.String()
	assert.True(t, strings.Contains(out, "msg=hello"), "output: %s", out)
	assert.True(t, strings.Contains(out, "k=v"), "output: %s", out)
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "text", "warn")
	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewLogger_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "json", "debug")
	logger.Debug("with source")

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &obj))
	assert.Contains(t, obj, "source")
}

func TestSetupLogger_DoesNotPanic(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		assert.NotPanics(t, func() { SetupLogger(format, "error") })
	}
}
