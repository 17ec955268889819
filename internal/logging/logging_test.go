package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesRotatedFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File = filepath.Join(t.TempDir(), "gate.log")

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Info("access granted", zap.Int64("player_id", 158))
	_ = logger.Sync()

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"access granted"`)
	assert.Contains(t, string(data), `"player_id":158`)
}

func TestNewRespectsLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "warn"
	cfg.File = filepath.Join(t.TempDir(), "gate.log")

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Sync()

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, err = New(Config{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}
