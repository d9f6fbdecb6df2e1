package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/station-aggregator/internal/config"
)

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, &config.AppConfig{Env: "prod", LogLevel: slog.LevelInfo}, "1.2.3", "station-aggregator")

	logger.Debug("hidden")
	logger.Info("flushed", "station_id", "alpha")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "flushed", line["msg"])
	assert.Equal(t, "alpha", line["station_id"])
	assert.Equal(t, "station-aggregator", line["app"])
	assert.Equal(t, "1.2.3", line["version"])
	assert.Equal(t, "prod", line["env"])
}

func TestNew_DevRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, &config.AppConfig{Env: "dev", LogLevel: slog.LevelWarn}, "dev", "station-aggregator")

	logger.Info("quiet")
	assert.Zero(t, buf.Len())

	logger.Warn("missing metric", "metric", "temp")
	assert.Contains(t, buf.String(), "missing metric")
	assert.Contains(t, buf.String(), "temp")
}
