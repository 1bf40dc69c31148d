package logger

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
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLogger_JSONCarriesComponentAndAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "INFO", "json", "Ingest").With("symbol", "AAPL")

	l.Info("loaded %d rows", 10)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "loaded 10 rows", entry["msg"])
	assert.Equal(t, "Ingest", entry["component"])
	assert.Equal(t, "AAPL", entry["symbol"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "WARNING", "text", "Store")

	l.Debug("hidden")
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warning("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "component=Store")
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "INFO", "text", "App").Named("Metrics")

	l.Error("boom")
	assert.Equal(t, "Metrics", l.Name())
	assert.Contains(t, buf.String(), "component=Metrics")
}
