package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNewLoggerJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, "json", slog.LevelInfo)

	logger.Debug("hidden")
	logger.With("component", "engine").Info("refresh complete", "count", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "refresh complete", line["msg"])
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, float64(2), line["count"])
}

func TestColorHandler(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, "pretty", slog.LevelDebug)

	logger.With("component", "mutator").WithGroup("helper").Warn("helper failed", "exit", 1)

	out := buf.String()
	assert.Contains(t, out, "WRN helper failed")
	assert.Contains(t, out, "component=mutator")
	assert.Contains(t, out, "helper.exit=1")
}

func TestColorHandlerLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, "pretty", slog.LevelWarn)

	logger.Info("quiet")
	assert.Empty(t, buf.String())
}
