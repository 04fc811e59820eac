package scheduler

import (
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/scheduled-publisher/pkg/metrics"
	"github.com/jdziat/scheduled-publisher/pkg/retry"
	"github.com/jdziat/scheduled-publisher/pkg/security"
)

// Defaults.
const (
	DefaultSweepInterval = time.Minute
	DefaultMaxRetries    = 3
)

type config struct {
	sweepInterval  time.Duration
	sweepSchedule  string
	policy         retry.Policy
	storeRetry     retry.BackoffConfig
	maxRetries     int
	concurrency    int
	publishTimeout time.Duration
	staleAfter     time.Duration
	logger         *zap.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

func defaultConfig() config {
	return config{
		sweepInterval:  DefaultSweepInterval,
		policy:         retry.DefaultPolicy(),
		storeRetry:     retry.DefaultBackoffConfig(),
		maxRetries:     DefaultMaxRetries,
		publishTimeout: 30 * time.Second,
		logger:         zap.NewNop(),
		now:            time.Now,
	}
}

// Option configures a Service.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *config) {
		if l != nil {
			c.logger = l
		}
	})
}

// WithClock overrides time.Now for scheduling decisions.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *config) {
		if now != nil {
			c.now = now
		}
	})
}

// WithSweepInterval sets how often overdue jobs are swept. Default: 1m.
func WithSweepInterval(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.sweepInterval = d
	})
}

// WithSweepSchedule sets the sweep trigger as a cron expression or descriptor
// such as "*/2 * * * *" or "@every 30s". It takes precedence over
// WithSweepInterval.
func WithSweepSchedule(expr string) Option {
	return optionFunc(func(c *config) {
		c.sweepSchedule = expr
	})
}

// WithRetryPolicy sets the policy applied when every platform fails.
func WithRetryPolicy(p retry.Policy) Option {
	return optionFunc(func(c *config) {
		c.policy = p
	})
}

// WithStoreRetry sets the backoff used for transient store write failures.
func WithStoreRetry(cfg retry.BackoffConfig) Option {
	return optionFunc(func(c *config) {
		c.storeRetry = cfg
	})
}

// WithDefaultMaxRetries sets MaxRetries for jobs created without one.
// Values are clamped to [0, 100].
func WithDefaultMaxRetries(n int) Option {
	return optionFunc(func(c *config) {
		c.maxRetries = security.ClampRetries(n)
	})
}

// WithPlatformConcurrency limits concurrent platform calls within one job.
func WithPlatformConcurrency(n int) Option {
	return optionFunc(func(c *config) {
		c.concurrency = n
	})
}

// WithPublishTimeout bounds each platform call. Default: 30s.
func WithPublishTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.publishTimeout = d
	})
}

// WithStaleProcessingRecovery re-queues jobs left in PROCESSING for longer
// than d, on Start and on every sweep. Disabled by default.
func WithStaleProcessingRecovery(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.staleAfter = d
	})
}

// WithMetrics records scheduler and publish metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return optionFunc(func(c *config) {
		c.metrics = m
	})
}
