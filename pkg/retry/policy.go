package retry

import "time"

// Default policy values.
const (
	DefaultDelay    = 5 * time.Minute
	DefaultMaxDelay = 30 * time.Minute
)

// Kind tags a Decision.
type Kind int

const (
	// Terminal means the job gives up and becomes FAILED.
	Terminal Kind = iota
	// Retry means the job returns to PENDING and is re-armed after Delay.
	Retry
)

func (k Kind) String() string {
	if k == Retry {
		return "retry"
	}
	return "terminal"
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Kind  Kind
	Delay time.Duration
}

// IsRetry reports whether the decision re-arms the job.
func (d Decision) IsRetry() bool { return d.Kind == Retry }

// Policy maps a failed attempt to a Decision.
type Policy struct {
	// Delay is the wait before a retry, measured from the failed attempt's completion.
	// Default: 5m
	Delay time.Duration

	// Exponential doubles Delay for every retry already consumed.
	// Default: false
	Exponential bool

	// MaxDelay caps exponential growth. Ignored when Exponential is false.
	// Default: 30m
	MaxDelay time.Duration
}

// DefaultPolicy returns a fixed five minute retry delay.
func DefaultPolicy() Policy {
	return Policy{
		Delay:    DefaultDelay,
		MaxDelay: DefaultMaxDelay,
	}
}

// Decide evaluates a total failure given how many retries were already consumed.
// A retry is granted only while retryCount+1 < maxRetries.
func (p Policy) Decide(retryCount, maxRetries int) Decision {
	if retryCount+1 >= maxRetries {
		return Decision{Kind: Terminal}
	}
	return Decision{Kind: Retry, Delay: p.delayFor(retryCount)}
}

func (p Policy) delayFor(retryCount int) time.Duration {
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	if !p.Exponential {
		return delay
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
