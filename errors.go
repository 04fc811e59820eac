package publisher

import "github.com/jdziat/scheduled-publisher/pkg/core"

// Re-exported errors
var (
	ErrJobNotFound         = core.ErrJobNotFound
	ErrJobTerminal         = core.ErrJobTerminal
	ErrJobInFlight         = core.ErrJobInFlight
	ErrStatusConflict      = core.ErrStatusConflict
	ErrInvalidTransition   = core.ErrInvalidTransition
	ErrNotRunning          = core.ErrNotRunning
	ErrInvalidSchedule     = core.ErrInvalidSchedule
	ErrInvalidJob          = core.ErrInvalidJob
	ErrNoPlatforms         = core.ErrNoPlatforms
	ErrUnknownPlatform     = core.ErrUnknownPlatform
	ErrContentTooLong      = core.ErrContentTooLong
	ErrTooManyMedia        = core.ErrTooManyMedia
	ErrAccountNotConnected = core.ErrAccountNotConnected
	ErrNoPublisher         = core.ErrNoPublisher
)
