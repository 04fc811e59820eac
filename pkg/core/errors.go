package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Lookup and state errors
var (
	ErrJobNotFound       = errors.New("publisher: scheduled job not found")
	ErrJobTerminal       = errors.New("publisher: scheduled job already in a terminal state")
	ErrJobInFlight       = errors.New("publisher: scheduled job is being processed")
	ErrStatusConflict    = errors.New("publisher: scheduled job status changed concurrently")
	ErrInvalidTransition = errors.New("publisher: invalid status transition")
	ErrNotRunning        = errors.New("publisher: scheduler is not running")
	ErrInvalidSchedule   = errors.New("publisher: invalid schedule")
)

// Validation errors
var (
	ErrInvalidJob      = errors.New("publisher: invalid scheduled job")
	ErrNoPlatforms     = errors.New("publisher: scheduled job targets no platforms")
	ErrUnknownPlatform = errors.New("publisher: unknown platform")
	ErrContentTooLong  = errors.New("publisher: content exceeds platform limit")
	ErrTooManyMedia    = errors.New("publisher: too many media items for platform")
)

// Publishing errors
var (
	ErrAccountNotConnected = errors.New("account not connected")
	ErrNoPublisher         = errors.New("no publisher registered for platform")
)

// PublishError is a failure of a single platform within an attempt.
type PublishError struct {
	Platform Platform
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s: %v", e.Platform, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// APIError is returned by HTTP publishers when the platform answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("platform api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("platform api returned status %d: %s", e.StatusCode, e.Body)
}
