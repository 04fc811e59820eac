package core

import "time"

// Event is the interface for all scheduler events.
type Event interface {
	eventMarker()
}

// FireSource identifies what triggered an attempt.
type FireSource string

const (
	SourceTimer    FireSource = "timer"
	SourceSweep    FireSource = "sweep"
	SourceSchedule FireSource = "schedule"
	SourceRecovery FireSource = "recovery"
)

// JobFired is emitted when an attempt wins the PENDING->PROCESSING guard.
type JobFired struct {
	JobID     string
	Source    FireSource
	Timestamp time.Time
}

func (*JobFired) eventMarker() {}

// JobCompleted is emitted when at least one platform succeeded.
type JobCompleted struct {
	Job       *ScheduledJob
	Outcomes  []PublishOutcome
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobCompleted) eventMarker() {}

// JobRetrying is emitted when every platform failed and a retry was armed.
type JobRetrying struct {
	Job       *ScheduledJob
	Attempt   int
	NextRunAt time.Time
	Timestamp time.Time
}

func (*JobRetrying) eventMarker() {}

// JobFailed is emitted when a job gives up.
type JobFailed struct {
	Job       *ScheduledJob
	Error     string
	Timestamp time.Time
}

func (*JobFailed) eventMarker() {}

// JobCancelled is emitted when a pending job is cancelled.
type JobCancelled struct {
	JobID     string
	Timestamp time.Time
}

func (*JobCancelled) eventMarker() {}
