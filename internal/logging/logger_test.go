package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWriter_NormalizesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, slog.LevelInfo)

	logger.Info("Event observed", "interface", "orders", "status", 0, "correlation_id", "", "method", "POST")
	logger.Warn("Transport fault observed", "error", errors.New("connection refused"), "status", 502)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "interface=orders")
	assert.Contains(t, out, "method=POST")
	assert.NotContains(t, out, "status=0")
	assert.NotContains(t, out, "correlation_id=")
	assert.Contains(t, out, `err="connection refused"`)
	assert.Contains(t, out, "status=502")
	assert.NotContains(t, out, "hidden")
}

func TestNewNop(t *testing.T) {
	assert.False(t, NewNop().Enabled(t.Context(), slog.LevelError))
}
