// Package timers holds one cancellable single-fire timer per scheduled job.
package timers

import (
	"sort"
	"sync"
	"time"
)

// Armed describes a live timer.
type Armed struct {
	JobID  string
	FireAt time.Time
}

type entry struct {
	timer  *time.Timer
	fireAt time.Time
	gen    uint64
}

// Registry maps job ids to armed timers. At most one timer is live per id.
// The zero value is not usable; call NewRegistry.
type Registry struct {
	mu     sync.Mutex
	timers map[string]*entry
	gen    uint64
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides time.Now, used to decide whether fireAt is in the past.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		timers: make(map[string]*entry),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Arm registers fn to run once at fireAt, replacing any timer already armed for jobID.
// A fireAt that is not in the future fires on the next scheduler tick.
// The entry is removed before fn runs, so fn may arm jobID again.
// Returns the generation of the new timer, for CancelIf, and whether an
// existing timer was replaced.
func (r *Registry) Arm(jobID string, fireAt time.Time, fn func()) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := r.stopLocked(jobID)

	r.gen++
	gen := r.gen
	delay := fireAt.Sub(r.now())
	if delay < 0 {
		delay = 0
	}

	// The callback blocks on mu until this entry is stored, so it always
	// observes its own generation or a newer one.
	t := time.AfterFunc(delay, func() {
		r.mu.Lock()
		e, ok := r.timers[jobID]
		if !ok || e.gen != gen {
			r.mu.Unlock()
			return
		}
		delete(r.timers, jobID)
		r.mu.Unlock()
		fn()
	})
	r.timers[jobID] = &entry{timer: t, fireAt: fireAt, gen: gen}
	return gen, replaced
}

// Cancel stops and removes the timer for jobID. Idempotent.
// Reports whether a timer was removed.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(jobID)
}

// CancelIf removes the timer for jobID only if it is still the one armed with
// generation gen. A newer arm for the same job is left alone.
func (r *Registry) CancelIf(jobID string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.timers[jobID]
	if !ok || e.gen != gen {
		return false
	}
	return r.stopLocked(jobID)
}

func (r *Registry) stopLocked(jobID string) bool {
	e, ok := r.timers[jobID]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(r.timers, jobID)
	return true
}

// CancelAll stops every timer and returns how many were removed.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.timers)
	for id, e := range r.timers {
		e.timer.Stop()
		delete(r.timers, id)
	}
	return n
}

// Has reports whether a timer is armed for jobID.
func (r *Registry) Has(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[jobID]
	return ok
}

// FireAt returns the instant the armed timer for jobID will fire.
func (r *Registry) FireAt(jobID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.timers[jobID]
	if !ok {
		return time.Time{}, false
	}
	return e.fireAt, true
}

// Len returns the number of armed timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Snapshot lists armed timers ordered by fire time.
func (r *Registry) Snapshot() []Armed {
	r.mu.Lock()
	out := make([]Armed, 0, len(r.timers))
	for id, e := range r.timers {
		out = append(out, Armed{JobID: id, FireAt: e.fireAt})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].JobID < out[j].JobID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}
