package platform

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/jdziat/scheduled-publisher/pkg/core"
	"github.com/jdziat/scheduled-publisher/pkg/security"
)

// Registry maps platform identifiers to publishers. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	publishers map[core.Platform]core.PlatformPublisher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{publishers: make(map[core.Platform]core.PlatformPublisher)}
}

// Register installs pub for p, replacing any previous publisher.
func (r *Registry) Register(p core.Platform, pub core.PlatformPublisher) error {
	if err := security.ValidatePlatform(p); err != nil {
		return err
	}
	if pub == nil {
		return errors.Newf("platform: nil publisher for %s", p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers[p] = pub
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(p core.Platform, pub core.PlatformPublisher) {
	if err := r.Register(p, pub); err != nil {
		panic(err)
	}
}

// Publisher returns the publisher registered for p.
func (r *Registry) Publisher(p core.Platform) (core.PlatformPublisher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pub, ok := r.publishers[p]
	return pub, ok
}

// Platforms lists registered identifiers in sorted order.
func (r *Registry) Platforms() []core.Platform {
	r.mu.RLock()
	out := make([]core.Platform, 0, len(r.publishers))
	for p := range r.publishers {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PublisherFunc adapts a function to core.PlatformPublisher.
type PublisherFunc func(ctx context.Context, content string, mediaURLs []string, creds core.Credentials) (string, error)

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, content string, mediaURLs []string, creds core.Credentials) (string, error) {
	return f(ctx, content, mediaURLs, creds)
}
