// Package events fans scheduler events out to channel subscribers and hooks.
package events

import (
	"context"
	"sync"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

// DefaultBuffer is the channel capacity given to each subscriber.
const DefaultBuffer = 100

// Hub broadcasts events. The zero value is not usable; use NewHub.
type Hub struct {
	mu   sync.RWMutex
	subs []chan core.Event

	onComplete []func(context.Context, *core.JobCompleted)
	onRetry    []func(context.Context, *core.JobRetrying)
	onFail     []func(context.Context, *core.JobFailed)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Events returns a channel for receiving events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (h *Hub) Events() <-chan core.Event {
	ch := make(chan core.Event, DefaultBuffer)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events.
// The channel is not closed. After Unsubscribe returns no further events are
// sent to it.
func (h *Hub) Unsubscribe(ch <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, sub := range h.subs {
		if sub == ch {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			return
		}
	}
}

// OnComplete registers a callback for jobs that reach COMPLETED.
func (h *Hub) OnComplete(fn func(context.Context, *core.JobCompleted)) {
	h.mu.Lock()
	h.onComplete = append(h.onComplete, fn)
	h.mu.Unlock()
}

// OnRetry registers a callback for jobs re-armed after a total failure.
func (h *Hub) OnRetry(fn func(context.Context, *core.JobRetrying)) {
	h.mu.Lock()
	h.onRetry = append(h.onRetry, fn)
	h.mu.Unlock()
}

// OnFail registers a callback for jobs that reach FAILED.
func (h *Hub) OnFail(fn func(context.Context, *core.JobFailed)) {
	h.mu.Lock()
	h.onFail = append(h.onFail, fn)
	h.mu.Unlock()
}

// Emit runs matching hooks synchronously, then offers e to every subscriber.
// Full subscriber channels drop the event instead of blocking.
func (h *Hub) Emit(ctx context.Context, e core.Event) {
	if h == nil {
		return
	}

	h.mu.RLock()
	subs := make([]chan core.Event, len(h.subs))
	copy(subs, h.subs)
	var (
		complete []func(context.Context, *core.JobCompleted)
		retrying []func(context.Context, *core.JobRetrying)
		failed   []func(context.Context, *core.JobFailed)
	)
	switch e.(type) {
	case *core.JobCompleted:
		complete = append(complete, h.onComplete...)
	case *core.JobRetrying:
		retrying = append(retrying, h.onRetry...)
	case *core.JobFailed:
		failed = append(failed, h.onFail...)
	}
	h.mu.RUnlock()

	switch ev := e.(type) {
	case *core.JobCompleted:
		for _, fn := range complete {
			fn(ctx, ev)
		}
	case *core.JobRetrying:
		for _, fn := range retrying {
			fn(ctx, ev)
		}
	case *core.JobFailed:
		for _, fn := range failed {
			fn(ctx, ev)
		}
	}

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}
