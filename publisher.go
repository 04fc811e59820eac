// Package publisher schedules posts and publishes them to social platforms
// at their scheduled time.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	db, _ := gorm.Open(sqlite.Open("publisher.db"), &gorm.Config{})
//	store := publisher.NewGormStorage(db)
//	store.Migrate(context.Background())
//
//	platforms := publisher.NewDefaultPlatforms(nil)
//	svc := publisher.New(store, platforms,
//	    publisher.WithSweepInterval(time.Minute),
//	)
//	svc.Start(ctx)
//	defer svc.Stop()
//
//	svc.Create(ctx, &publisher.ScheduledJob{
//	    OwnerID:       "user-1",
//	    Content:       "launch day",
//	    Platforms:     []publisher.Platform{publisher.Twitter},
//	    ScheduledTime: time.Now().Add(time.Hour),
//	})
package publisher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jdziat/scheduled-publisher/pkg/core"
	"github.com/jdziat/scheduled-publisher/pkg/metrics"
	"github.com/jdziat/scheduled-publisher/pkg/platform"
	"github.com/jdziat/scheduled-publisher/pkg/retry"
	"github.com/jdziat/scheduled-publisher/pkg/scheduler"
	"github.com/jdziat/scheduled-publisher/pkg/security"
	"github.com/jdziat/scheduled-publisher/pkg/storage"
)

// Type aliases
type (
	// ScheduledJob is a persisted request to publish content at a given time.
	ScheduledJob = core.ScheduledJob

	// JobUpdate is a partial update of a ScheduledJob.
	JobUpdate = core.JobUpdate

	// Status is the lifecycle state of a ScheduledJob.
	Status = core.Status

	// Platform identifies an external platform.
	Platform = core.Platform

	// PublishOutcome is the result of one platform within an attempt.
	PublishOutcome = core.PublishOutcome

	// Publication records a post created on a platform.
	Publication = core.Publication

	// SocialAccount holds an owner's credentials for a platform.
	SocialAccount = core.SocialAccount

	// Credentials are passed to a PlatformPublisher.
	Credentials = core.Credentials

	// Store is the durable record of scheduled jobs.
	Store = core.Store

	// CredentialResolver looks up an owner's credentials.
	CredentialResolver = core.CredentialResolver

	// PlatformPublisher creates a post on one platform.
	PlatformPublisher = core.PlatformPublisher

	// PublicationLog records successful publications.
	PublicationLog = core.PublicationLog

	// Event is the interface for all scheduler events.
	Event = core.Event

	// JobFired is emitted when an attempt begins.
	JobFired = core.JobFired

	// JobCompleted is emitted when at least one platform succeeded.
	JobCompleted = core.JobCompleted

	// JobRetrying is emitted when a failed job is re-armed.
	JobRetrying = core.JobRetrying

	// JobFailed is emitted when a job gives up.
	JobFailed = core.JobFailed

	// JobCancelled is emitted when a pending job is cancelled.
	JobCancelled = core.JobCancelled

	// PublishError is one platform's failure.
	PublishError = core.PublishError

	// Service is the scheduler.
	Service = scheduler.Service

	// Option configures a Service.
	Option = scheduler.Option

	// ServiceStatus is a diagnostic snapshot of a Service.
	ServiceStatus = scheduler.Status

	// RetryPolicy decides what happens after a total failure.
	RetryPolicy = retry.Policy

	// PlatformRegistry maps platforms to publishers.
	PlatformRegistry = platform.Registry

	// PublisherFunc adapts a function to PlatformPublisher.
	PublisherFunc = platform.PublisherFunc

	// HTTPConfig configures a built-in HTTP publisher.
	HTTPConfig = platform.HTTPConfig

	// GormStorage is the GORM-backed Store.
	GormStorage = storage.GormStorage

	// Metrics holds Prometheus collectors.
	Metrics = metrics.Metrics
)

// Job status constants
const (
	StatusPending    = core.StatusPending
	StatusProcessing = core.StatusProcessing
	StatusCompleted  = core.StatusCompleted
	StatusFailed     = core.StatusFailed
	StatusCancelled  = core.StatusCancelled
)

// Built-in platforms
const (
	Twitter   = core.PlatformTwitter
	LinkedIn  = core.PlatformLinkedIn
	Instagram = core.PlatformInstagram
)

// Security limits
const (
	MaxRetries            = security.MaxRetries
	MaxConcurrency        = security.MaxConcurrency
	MaxErrorMessageLength = security.MaxErrorMessageLength
	MaxPlatformsPerJob    = security.MaxPlatformsPerJob
)

// New creates a stopped Service over a GORM store, which also serves
// credentials and the publication log.
func New(store *GormStorage, platforms *PlatformRegistry, opts ...Option) *Service {
	return scheduler.New(store, store, platforms, store, opts...)
}

// NewService creates a stopped Service from separate collaborators.
// pubLog may be nil.
func NewService(store Store, creds CredentialResolver, platforms *PlatformRegistry, pubLog PublicationLog, opts ...Option) *Service {
	return scheduler.New(store, creds, platforms, pubLog, opts...)
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return storage.NewGormStorage(db)
}

// NewPlatformRegistry creates an empty platform registry.
func NewPlatformRegistry() *PlatformRegistry {
	return platform.NewRegistry()
}

// NewDefaultPlatforms registers the built-in TWITTER, LINKEDIN and INSTAGRAM
// HTTP publishers. configs may be nil.
func NewDefaultPlatforms(configs map[Platform]HTTPConfig) *PlatformRegistry {
	return platform.NewDefaultRegistry(configs)
}

// NewMetrics registers publisher metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return metrics.NewMetrics(reg)
}

// DefaultRetryPolicy returns the fixed five minute policy.
func DefaultRetryPolicy() RetryPolicy {
	return retry.DefaultPolicy()
}

// SanitizeErrorMessage strips control characters and truncates msg.
func SanitizeErrorMessage(msg string) string {
	return security.SanitizeErrorMessage(msg)
}

// --- Service options ---

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option { return scheduler.WithLogger(l) }

// WithSweepInterval sets how often overdue jobs are swept.
func WithSweepInterval(d time.Duration) Option { return scheduler.WithSweepInterval(d) }

// WithSweepSchedule sets the sweep trigger as a cron expression.
func WithSweepSchedule(expr string) Option { return scheduler.WithSweepSchedule(expr) }

// WithRetryPolicy sets the policy applied on total failure.
func WithRetryPolicy(p RetryPolicy) Option { return scheduler.WithRetryPolicy(p) }

// WithDefaultMaxRetries sets MaxRetries for jobs created without one.
func WithDefaultMaxRetries(n int) Option { return scheduler.WithDefaultMaxRetries(n) }

// WithPlatformConcurrency limits concurrent platform calls within a job.
func WithPlatformConcurrency(n int) Option { return scheduler.WithPlatformConcurrency(n) }

// WithPublishTimeout bounds each platform call.
func WithPublishTimeout(d time.Duration) Option { return scheduler.WithPublishTimeout(d) }

// WithStaleProcessingRecovery re-queues jobs stuck in PROCESSING longer than d.
func WithStaleProcessingRecovery(d time.Duration) Option {
	return scheduler.WithStaleProcessingRecovery(d)
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *Metrics) Option { return scheduler.WithMetrics(m) }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return scheduler.WithClock(now) }
