package core

import (
	"time"
)

// Status represents the current state of a scheduled job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Platform identifies an external publishing platform.
// The set is open: registering a PlatformPublisher for a new identifier is enough.
type Platform string

const (
	PlatformInstagram Platform = "INSTAGRAM"
	PlatformLinkedIn  Platform = "LINKEDIN"
	PlatformTwitter   Platform = "TWITTER"
)

// ScheduledJob is a persisted request to publish content to one or more
// platforms at a future instant.
type ScheduledJob struct {
	ID            string     `gorm:"primaryKey;size:36"`
	OwnerID       string     `gorm:"index;size:255;not null"`
	Content       string     `gorm:"type:text"`
	Platforms     []Platform `gorm:"serializer:json;type:text"`
	MediaURLs     []string   `gorm:"serializer:json;type:text"`
	Hashtags      []string   `gorm:"serializer:json;type:text"`
	ScheduledTime time.Time  `gorm:"index;not null"`
	Status        Status     `gorm:"index;size:20;default:'PENDING'"`
	RetryCount    int        `gorm:"not null"`
	MaxRetries    int        `gorm:"not null"`
	ErrorMessage  *string    `gorm:"type:text"`

	// TimerKey is set while an in-process timer is armed for the job.
	TimerKey *string `gorm:"size:36"`

	ProcessingStartedAt *time.Time `gorm:"index"`
	CompletedAt         *time.Time
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

// JobUpdate describes a partial update of a ScheduledJob.
// Nil pointer and nil slice fields are left unchanged.
type JobUpdate struct {
	// IfStatus, when set, makes the update conditional on the current status.
	// A mismatch yields ErrStatusConflict.
	IfStatus Status

	Status        *Status
	RetryCount    *int
	MaxRetries    *int
	ScheduledTime *time.Time
	Content       *string
	Platforms     []Platform
	MediaURLs     []string
	Hashtags      []string
	ErrorMessage  *string
	ClearError    bool
	TimerKey      *string
	ClearTimerKey bool
	CompletedAt   *time.Time
}

// Empty reports whether the update changes nothing.
func (u JobUpdate) Empty() bool {
	return u.Status == nil && u.RetryCount == nil && u.MaxRetries == nil &&
		u.ScheduledTime == nil && u.Content == nil && u.Platforms == nil &&
		u.MediaURLs == nil && u.Hashtags == nil && u.ErrorMessage == nil &&
		!u.ClearError && u.TimerKey == nil && !u.ClearTimerKey && u.CompletedAt == nil
}

// Apply copies the update onto job. Used by in-memory callers that already hold
// the job and want the persisted view without a re-read.
func (u JobUpdate) Apply(job *ScheduledJob) {
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.RetryCount != nil {
		job.RetryCount = *u.RetryCount
	}
	if u.MaxRetries != nil {
		job.MaxRetries = *u.MaxRetries
	}
	if u.ScheduledTime != nil {
		job.ScheduledTime = *u.ScheduledTime
	}
	if u.Content != nil {
		job.Content = *u.Content
	}
	if u.Platforms != nil {
		job.Platforms = u.Platforms
	}
	if u.MediaURLs != nil {
		job.MediaURLs = u.MediaURLs
	}
	if u.Hashtags != nil {
		job.Hashtags = u.Hashtags
	}
	if u.ClearError {
		job.ErrorMessage = nil
	} else if u.ErrorMessage != nil {
		msg := *u.ErrorMessage
		job.ErrorMessage = &msg
	}
	if u.ClearTimerKey {
		job.TimerKey = nil
	} else if u.TimerKey != nil {
		key := *u.TimerKey
		job.TimerKey = &key
	}
	if u.CompletedAt != nil {
		job.CompletedAt = u.CompletedAt
	}
}

// PublishOutcome is the result of one (job, platform) publish attempt.
// It is never persisted on its own.
type PublishOutcome struct {
	Platform       Platform
	Succeeded      bool
	ExternalPostID string
	Err            error
}

// ErrorDetail returns the failure text, or "" for a successful outcome.
func (o PublishOutcome) ErrorDetail() string {
	if o.Succeeded || o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Publication records a post that was created on an external platform.
type Publication struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ScheduledJobID string    `gorm:"index;size:36"`
	OwnerID        string    `gorm:"index;size:255;not null"`
	Platform       Platform  `gorm:"index;size:32;not null"`
	ExternalPostID string    `gorm:"size:255"`
	Content        string    `gorm:"type:text"`
	MediaURLs      []string  `gorm:"serializer:json;type:text"`
	PublishedAt    time.Time `gorm:"index"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// SocialAccount is a user's connection to a platform.
type SocialAccount struct {
	ID           string   `gorm:"primaryKey;size:36"`
	OwnerID      string   `gorm:"index:idx_account_owner_platform;size:255;not null"`
	Platform     Platform `gorm:"index:idx_account_owner_platform;size:32;not null"`
	AccountID    string   `gorm:"size:255"`
	AccessToken  string   `gorm:"type:text"`
	RefreshToken string   `gorm:"type:text"`
	IsActive     bool
	ExpiresAt    *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Credentials are the per-user, per-platform secrets needed to publish.
type Credentials struct {
	AccountID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}
