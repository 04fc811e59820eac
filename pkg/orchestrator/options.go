package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/scheduled-publisher/pkg/events"
	"github.com/jdziat/scheduled-publisher/pkg/metrics"
	"github.com/jdziat/scheduled-publisher/pkg/retry"
	"github.com/jdziat/scheduled-publisher/pkg/security"
)

// DefaultPublishTimeout bounds a single platform call.
const DefaultPublishTimeout = 30 * time.Second

// Option configures an Orchestrator.
type Option interface {
	apply(*Orchestrator)
}

type optionFunc func(*Orchestrator)

func (f optionFunc) apply(o *Orchestrator) { f(o) }

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	})
}

// WithRetryPolicy sets the policy applied on total failure.
func WithRetryPolicy(p retry.Policy) Option {
	return optionFunc(func(o *Orchestrator) {
		o.policy = p
	})
}

// WithStoreRetry sets the backoff used for disposition writes.
func WithStoreRetry(cfg retry.BackoffConfig) Option {
	return optionFunc(func(o *Orchestrator) {
		o.storeRetry = cfg
	})
}

// WithConcurrency limits how many platforms of one job publish at once.
// Zero means all at once.
func WithConcurrency(n int) Option {
	return optionFunc(func(o *Orchestrator) {
		o.concurrency = security.ClampConcurrency(n)
	})
}

// WithPublishTimeout bounds each platform call. Zero disables the timeout.
func WithPublishTimeout(d time.Duration) Option {
	return optionFunc(func(o *Orchestrator) {
		o.publishTimeout = d
	})
}

// WithMetrics records fires, dispositions and publish calls.
func WithMetrics(m *metrics.Metrics) Option {
	return optionFunc(func(o *Orchestrator) {
		o.metrics = m
	})
}

// WithEvents emits lifecycle events on h.
func WithEvents(h *events.Hub) Option {
	return optionFunc(func(o *Orchestrator) {
		o.events = h
	})
}
