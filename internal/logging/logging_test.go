package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"palettecam/internal/config"
)

func TestNew_Console(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "warn", "error"} {
		logger, err := New(config.Log{Level: lvl, Format: "console"})
		require.NoError(t, err, lvl)
		require.NotNil(t, logger)
	}

	logger, err := New(config.Log{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.ErrorLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.Log{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestNew_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palettecam.log")
	logger, err := New(config.Log{Level: "debug", Format: "json", Filename: path, MaxSize: 1})
	require.NoError(t, err)

	logger.Debug("kmeans run", zap.Int("k", 4))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "kmeans run", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.EqualValues(t, 4, entry["k"])
}
