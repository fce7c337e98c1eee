package request

import (
	"slices"
	"strings"
)

// Platform is a target execution platform of the host runtime.
type Platform string

// Supported platforms.
const (
	IOS     Platform = "ios"
	Android Platform = "android"
	Web     Platform = "web"
)

// AllPlatforms lists every supported platform in canonical order.
var AllPlatforms = Platforms{Android, IOS, Web}

// DefaultPlatforms is used when a request does not name any platform.
var DefaultPlatforms = AllPlatforms

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	return slices.Contains(AllPlatforms, p)
}

// Native reports whether p runs the native runtime (anything but web).
func (p Platform) Native() bool { return p != Web }

// Platforms is a sorted, duplicate-free set of platforms.
type Platforms []Platform

// NewPlatforms normalizes ps into a sorted set.
func NewPlatforms(ps ...Platform) Platforms {
	out := make(Platforms, 0, len(ps))
	for _, p := range ps {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

// Contains reports whether p is in the set.
func (ps Platforms) Contains(p Platform) bool { return slices.Contains(ps, p) }

// Without returns a copy of the set with p removed.
func (ps Platforms) Without(p Platform) Platforms {
	out := make(Platforms, 0, len(ps))
	for _, q := range ps {
		if q != p {
			out = append(out, q)
		}
	}
	return out
}

// String joins the set with commas, e.g. "android,ios,web".
func (ps Platforms) String() string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}
