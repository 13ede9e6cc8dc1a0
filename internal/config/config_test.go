package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/ecscore/internal/config"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ecscore.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
[scheduler]
workers = 2
strict = true

[logging]
format = "json"

[demo]
frames = 10
frame_interval = "50ms"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Scheduler.Workers)
	assert.True(t, cfg.Scheduler.Strict)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10, cfg.Demo.Frames)
	assert.Equal(t, 50*time.Millisecond, cfg.Demo.FrameInterval)

	// untouched keys keep their defaults
	def := config.Default()
	assert.Equal(t, def.Scheduler.ParBatchSize, cfg.Scheduler.ParBatchSize)
	assert.Equal(t, def.World, cfg.World)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "read config")

	_, err = config.Load(writeFile(t, "[scheduler\nworkers = 1"))
	assert.ErrorContains(t, err, "parse config")

	_, err = config.Load(writeFile(t, "[logging]\nformat = \"xml\""))
	assert.ErrorContains(t, err, "validate config")
}
