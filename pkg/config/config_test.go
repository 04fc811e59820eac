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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "publisher.db", cfg.Database.DSN)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)

	assert.Equal(t, time.Minute, cfg.Scheduler.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.RetryDelay)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.MaxRetryDelay)
	assert.False(t, cfg.Scheduler.ExponentialBackoff)
	assert.Equal(t, 3, cfg.Scheduler.MaxRetries)
	assert.Equal(t, time.Duration(0), cfg.Scheduler.StaleProcessingAfter)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.PublishTimeout)

	require.Contains(t, cfg.Platforms, "twitter")
	assert.Equal(t, 20, cfg.Platforms["twitter"].RatePerMinute)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publisher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://localhost/publisher
scheduler:
  sweep_interval: 30s
  retry_delay: 1m
  exponential_backoff: true
  max_retries: 5
platforms:
  linkedin:
    base_url: http://linkedin.test
    rate_per_minute: 5
log:
  json: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.SweepInterval)
	assert.Equal(t, time.Minute, cfg.Scheduler.RetryDelay)
	assert.True(t, cfg.Scheduler.ExponentialBackoff)
	assert.Equal(t, 5, cfg.Scheduler.MaxRetries)
	assert.Equal(t, "http://linkedin.test", cfg.Platforms["linkedin"].BaseURL)
	assert.Equal(t, 5, cfg.Platforms["linkedin"].RatePerMinute)
	assert.Equal(t, 20, cfg.Platforms["twitter"].RatePerMinute, "defaults survive partial files")
	assert.True(t, cfg.Log.JSON)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PUBLISHER_DATABASE_DSN", "/tmp/other.db")
	t.Setenv("PUBLISHER_SCHEDULER_MAX_RETRIES", "7")
	t.Setenv("PUBLISHER_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Database.DSN)
	assert.Equal(t, 7, cfg.Scheduler.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Scheduler.SweepInterval = 0
	assert.Error(t, cfg.Validate())
	cfg.Scheduler.SweepSchedule = "* * * * *"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Scheduler.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}
