package platform

import (
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

// Limits bounds what a platform accepts in a single post.
// Zero fields are unlimited.
type Limits struct {
	MaxChars int
	MinMedia int
	MaxMedia int
}

// DefaultLimits holds the documented per-platform limits.
var DefaultLimits = map[core.Platform]Limits{
	core.PlatformTwitter:   {MaxChars: 280, MaxMedia: 4},
	core.PlatformLinkedIn:  {MaxChars: 3000, MaxMedia: 20},
	core.PlatformInstagram: {MaxChars: 2200, MinMedia: 1, MaxMedia: 10},
}

// Check validates content and media against the limits.
func (l Limits) Check(content string, mediaURLs []string) error {
	if l.MaxChars > 0 {
		if n := utf8.RuneCountInString(content); n > l.MaxChars {
			return errors.Wrapf(core.ErrContentTooLong, "%d characters, limit %d", n, l.MaxChars)
		}
	}
	if l.MaxMedia > 0 && len(mediaURLs) > l.MaxMedia {
		return errors.Wrapf(core.ErrTooManyMedia, "%d items, limit %d", len(mediaURLs), l.MaxMedia)
	}
	if len(mediaURLs) < l.MinMedia {
		return errors.Newf("at least %d media item(s) required", l.MinMedia)
	}
	return nil
}
