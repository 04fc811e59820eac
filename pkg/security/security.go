package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

// Security limits and configuration
const (
	// MaxRetries is the hard limit for retry attempts
	MaxRetries = 100

	// MaxConcurrency is the hard limit for per-job platform concurrency
	MaxConcurrency = 64

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxPlatformNameLength is the maximum length for platform identifiers
	MaxPlatformNameLength = 32

	// MaxPlatformsPerJob bounds the fan-out of a single job
	MaxPlatformsPerJob = 16

	// MaxOwnerIDLength is the maximum length for owner identifiers
	MaxOwnerIDLength = 255
)

// validPlatformName matches upper-case identifiers such as TWITTER or MASTODON_V2
var validPlatformName = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ValidatePlatform validates a platform identifier
func ValidatePlatform(p core.Platform) error {
	name := string(p)
	if name == "" || len(name) > MaxPlatformNameLength || !validPlatformName.MatchString(name) {
		return errors.Wrapf(core.ErrUnknownPlatform, "%q", name)
	}
	return nil
}

// ValidateJob checks the fields the scheduler relies on.
func ValidateJob(job *core.ScheduledJob) error {
	if job == nil {
		return errors.Wrap(core.ErrInvalidJob, "nil job")
	}
	if strings.TrimSpace(job.OwnerID) == "" {
		return errors.Wrap(core.ErrInvalidJob, "owner id is required")
	}
	if len(job.OwnerID) > MaxOwnerIDLength {
		return errors.Wrap(core.ErrInvalidJob, "owner id too long")
	}
	if job.ScheduledTime.IsZero() {
		return errors.Wrap(core.ErrInvalidJob, "scheduled time is required")
	}
	if len(job.Platforms) == 0 {
		return core.ErrNoPlatforms
	}
	if len(job.Platforms) > MaxPlatformsPerJob {
		return errors.Wrapf(core.ErrInvalidJob, "too many platforms (%d)", len(job.Platforms))
	}
	seen := make(map[core.Platform]struct{}, len(job.Platforms))
	for _, p := range job.Platforms {
		if err := ValidatePlatform(p); err != nil {
			return err
		}
		if _, dup := seen[p]; dup {
			return errors.Wrapf(core.ErrInvalidJob, "duplicate platform %s", p)
		}
		seen[p] = struct{}{}
	}
	if job.RetryCount < 0 || job.MaxRetries < 0 {
		return errors.Wrap(core.ErrInvalidJob, "retry counters must not be negative")
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampRetries ensures retry count is within limits
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetries {
		return MaxRetries
	}
	return n
}

// ClampConcurrency ensures concurrency is within limits. Zero means unbounded.
func ClampConcurrency(n int) int {
	if n <= 0 {
		return 0
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
