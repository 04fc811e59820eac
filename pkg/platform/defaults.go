package platform

import "github.com/jdziat/scheduled-publisher/pkg/core"

// NewDefaultRegistry registers the built-in HTTP publishers.
// configs may override any platform's HTTPConfig.
func NewDefaultRegistry(configs map[core.Platform]HTTPConfig) *Registry {
	r := NewRegistry()
	r.MustRegister(core.PlatformTwitter, NewTwitter(configs[core.PlatformTwitter]))
	r.MustRegister(core.PlatformLinkedIn, NewLinkedIn(configs[core.PlatformLinkedIn]))
	r.MustRegister(core.PlatformInstagram, NewInstagram(configs[core.PlatformInstagram]))
	return r
}
