package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "test-token")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.Telegram.Token)
	assert.Equal(t, 50, cfg.Feed.BatchSize)
	assert.Equal(t, 120*time.Second, cfg.Feed.DeadTime.Std())
	assert.Equal(t, 100, cfg.Feed.MaxReconnects)
	assert.Equal(t, 30*time.Second, cfg.Monitor.SyncInterval.Std())
	assert.Equal(t, 1024, cfg.Dispatcher.QueueSize)
	assert.Equal(t, 2, cfg.Dispatcher.Workers)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "test-token")

	path := filepath.Join(t.TempDir(), "config.yml")
	raw := `
feed:
  batch_size: 25
  dead_time: 2m
monitor:
  sync_interval: 45s
dispatcher:
  workers: 4
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Feed.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.Feed.DeadTime.Std())
	assert.Equal(t, 45*time.Second, cfg.Monitor.SyncInterval.Std())
	assert.Equal(t, 4, cfg.Dispatcher.Workers)
	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Feed.MaxReconnects)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "env-token")
	t.Setenv("PRICEPULSE_DB", "/tmp/env.db")
	t.Setenv("PRICEPULSE_LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "config.yml")
	raw := `
telegram:
  token: file-token
database:
  path: file.db
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingTokenFails(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "test-token")

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("feed:\n  dead_time: nonsense\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Telegram.Token = "x"

	cfg.Dispatcher.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Telegram.Token = "x"
	cfg.Feed.BatchSize = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadUnvalidated_AllowsMissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")

	cfg, err := LoadUnvalidated("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Telegram.Token)
}
