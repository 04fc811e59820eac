package core

import (
	"context"
	"time"
)

// Store is the durable record of scheduled jobs.
type Store interface {
	// Create persists a new job.
	Create(ctx context.Context, job *ScheduledJob) error

	// Get returns the job or ErrJobNotFound.
	Get(ctx context.Context, jobID string) (*ScheduledJob, error)

	// FindDueJobs returns PENDING jobs with ScheduledTime <= now.
	FindDueJobs(ctx context.Context, now time.Time) ([]*ScheduledJob, error)

	// FindPendingAfter returns PENDING jobs with ScheduledTime > now.
	FindPendingAfter(ctx context.Context, now time.Time) ([]*ScheduledJob, error)

	// CompareAndSetStatus atomically moves a job from expected to next.
	// It reports false, without error, when the job is not in expected.
	CompareAndSetStatus(ctx context.Context, jobID string, expected, next Status) (bool, error)

	// Update applies a partial update.
	Update(ctx context.Context, jobID string, upd JobUpdate) error
}

// StaleFinder is implemented by stores that can list jobs stuck in PROCESSING.
type StaleFinder interface {
	FindStaleProcessing(ctx context.Context, startedBefore time.Time) ([]*ScheduledJob, error)
}

// CredentialResolver looks up the active credentials of an owner on a platform.
// It returns ErrAccountNotConnected when there are none.
type CredentialResolver interface {
	Resolve(ctx context.Context, ownerID string, platform Platform) (*Credentials, error)
}

// PlatformPublisher creates a post on one external platform.
type PlatformPublisher interface {
	Publish(ctx context.Context, content string, mediaURLs []string, creds Credentials) (externalPostID string, err error)
}

// PublisherLookup resolves the publisher registered for a platform.
type PublisherLookup interface {
	Publisher(platform Platform) (PlatformPublisher, bool)
}

// PublicationLog records successful publications.
type PublicationLog interface {
	Record(ctx context.Context, pub *Publication) error
}
