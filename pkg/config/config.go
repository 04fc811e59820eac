// Package config loads publisher configuration from an optional file and
// PUBLISHER_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/jdziat/scheduled-publisher/pkg/storage"
)

// EnvPrefix is the prefix of environment overrides, e.g. PUBLISHER_DATABASE_DSN.
const EnvPrefix = "PUBLISHER"

// Config is the full configuration of the publisher daemon.
type Config struct {
	Database  DatabaseConfig            `mapstructure:"database"`
	Scheduler SchedulerConfig           `mapstructure:"scheduler"`
	Platforms map[string]PlatformConfig `mapstructure:"platforms"`
	Log       LogConfig                 `mapstructure:"log"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
}

// DatabaseConfig selects and tunes the store.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// SchedulerConfig tunes the scheduler service.
type SchedulerConfig struct {
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
	SweepSchedule        string        `mapstructure:"sweep_schedule"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay        time.Duration `mapstructure:"max_retry_delay"`
	ExponentialBackoff   bool          `mapstructure:"exponential_backoff"`
	MaxRetries           int           `mapstructure:"max_retries"`
	PlatformConcurrency  int           `mapstructure:"platform_concurrency"`
	StaleProcessingAfter time.Duration `mapstructure:"stale_processing_after"`
	PublishTimeout       time.Duration `mapstructure:"publish_timeout"`
}

// PlatformConfig configures one HTTP publisher.
type PlatformConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	RatePerMinute int    `mapstructure:"rate_per_minute"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers default values for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "publisher.db")
	v.SetDefault("database.max_open_conns", storage.DefaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", storage.DefaultMaxIdleConns)

	v.SetDefault("scheduler.sweep_interval", time.Minute)
	v.SetDefault("scheduler.sweep_schedule", "")
	v.SetDefault("scheduler.retry_delay", 5*time.Minute)
	v.SetDefault("scheduler.max_retry_delay", 30*time.Minute)
	v.SetDefault("scheduler.exponential_backoff", false)
	v.SetDefault("scheduler.max_retries", 3)
	v.SetDefault("scheduler.platform_concurrency", 0)
	v.SetDefault("scheduler.stale_processing_after", time.Duration(0))
	v.SetDefault("scheduler.publish_timeout", 30*time.Second)

	for _, p := range []string{"twitter", "linkedin", "instagram"} {
		v.SetDefault("platforms."+p+".base_url", "")
		v.SetDefault("platforms."+p+".rate_per_minute", 20) // publishing limit per platform
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("metrics.addr", ":9090")
}

// New returns a viper instance with defaults and environment binding.
// When path is non-empty the file is read; its format follows the extension.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}
	return v, nil
}

// Load reads the configuration.
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper unmarshals and validates v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return errors.Newf("config: unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.Scheduler.SweepSchedule == "" && c.Scheduler.SweepInterval <= 0 {
		return errors.New("config: scheduler.sweep_interval must be positive")
	}
	if c.Scheduler.MaxRetries < 0 {
		return errors.New("config: scheduler.max_retries must not be negative")
	}
	if c.Scheduler.RetryDelay <= 0 {
		return errors.New("config: scheduler.retry_delay must be positive")
	}
	for name, p := range c.Platforms {
		if p.RatePerMinute < 0 {
			return errors.Newf("config: platforms.%s.rate_per_minute must not be negative", name)
		}
	}
	return nil
}
