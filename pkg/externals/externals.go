// Package externals defines the host-runtime contract: the modules the runtime
// supplies itself and that must therefore never be embedded in a bundle.
//
// A [Policy] is consulted twice for every request: once when the dependency set
// of a package is resolved (which modules become peer dependencies) and once when
// the bundle is built (which import specifiers are left external). Both sides
// must use the same Policy value, otherwise a module can be installed and
// embedded while the runtime also supplies it, or the other way around.
//
// Policies are immutable after construction and safe for concurrent use.
package externals

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Definition is the serializable form of a [Policy].
type Definition struct {
	Version         string            `toml:"version"`
	Core            []string          `toml:"core"`             // host built-ins, never peer dependencies
	Packages        []string          `toml:"packages"`         // host-provided modules, become peer dependencies
	Families        []string          `toml:"families"`         // regexps matching package-external families
	Ignored         []string          `toml:"ignored"`          // names never declared as dependencies
	IgnoredFamilies []string          `toml:"ignored_families"` // regexps matching ignored names
	Aliases         map[string]string `toml:"aliases"`          // declared name -> host replacement
}

// Policy is the compiled externals table.
type Policy struct {
	version         string
	core            map[string]bool
	packages        map[string]bool
	families        []*regexp.Regexp
	ignored         map[string]bool
	ignoredFamilies []*regexp.Regexp
	aliases         map[string]string
}

// New compiles a Definition into a Policy.
func New(def Definition) (*Policy, error) {
	p := &Policy{
		version:  def.Version,
		core:     toSet(def.Core),
		packages: toSet(def.Packages),
		ignored:  toSet(def.Ignored),
		aliases:  make(map[string]string, len(def.Aliases)),
	}
	for name, target := range def.Aliases {
		p.aliases[name] = target
	}
	var err error
	if p.families, err = compile(def.Families); err != nil {
		return nil, err
	}
	if p.ignoredFamilies, err = compile(def.IgnoredFamilies); err != nil {
		return nil, err
	}
	for name := range p.packages {
		if p.core[name] {
			return nil, fmt.Errorf("externals: %q is listed as both core and package external", name)
		}
	}
	return p, nil
}

// MustNew is like New but panics on an invalid definition.
func MustNew(def Definition) *Policy {
	p, err := New(def)
	if err != nil {
		panic(err)
	}
	return p
}

// LoadFile reads a TOML policy definition from path.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read externals policy: %w", err)
	}
	var def Definition
	if err := toml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse externals policy %s: %w", path, err)
	}
	return New(def)
}

// Version identifies the runtime contract this policy encodes.
func (p *Policy) Version() string { return p.version }

// IsCore reports whether specifier is a host built-in or a subpath of one.
func (p *Policy) IsCore(specifier string) bool {
	return p.core[PackageName(specifier)]
}

// IsPackage reports whether specifier belongs to a host-provided package,
// either listed explicitly or matched by a family rule.
func (p *Policy) IsPackage(specifier string) bool {
	name := PackageName(specifier)
	if name == "" || p.core[name] {
		return false
	}
	if p.packages[name] {
		return true
	}
	for _, re := range p.families {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// IsExternal reports whether specifier must be left out of bundles.
func (p *Policy) IsExternal(specifier string) bool {
	return p.IsCore(specifier) || p.IsPackage(specifier)
}

// IsIgnored reports whether name must never be declared as a dependency.
func (p *Policy) IsIgnored(name string) bool {
	if p.ignored[name] {
		return true
	}
	for _, re := range p.ignoredFamilies {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Alias returns the host replacement for a declared dependency name.
func (p *Policy) Alias(name string) (string, bool) {
	target, ok := p.aliases[name]
	return target, ok
}

// Names returns every explicitly listed external, sorted.
func (p *Policy) Names() []string {
	names := make([]string, 0, len(p.core)+len(p.packages))
	for name := range p.core {
		names = append(names, name)
	}
	for name := range p.packages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// PackageName returns the package that owns an import specifier: the first
// path segment, or the first two for scoped names. Relative, absolute and
// empty specifiers have no owning package and yield "".
func PackageName(specifier string) string {
	if specifier == "" || strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") {
		return ""
	}
	parts := strings.SplitN(specifier, "/", 3)
	if strings.HasPrefix(specifier, "@") {
		if len(parts) < 2 || parts[1] == "" {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("externals: invalid pattern %q: %w", pat, err)
		}
		res = append(res, re)
	}
	return res, nil
}
