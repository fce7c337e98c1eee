package bundler

import (
	"context"
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/snackager/pkg/deps"
	"github.com/matzehuels/snackager/pkg/errors"
	"github.com/matzehuels/snackager/pkg/externals"
)

// healState is the mutable dependency state of one build. It is only used by
// the goroutine running the healing loop.
type healState struct {
	res       *deps.Resolution
	policy    *externals.Policy
	install   map[string]string // name → version spec to install
	installed map[string]bool   // names installed by a previous attempt
	extra     map[string]bool   // externals beyond the policy
	dirty     bool
	warnings  []Warning
}

// newHealState seeds the install set with the declared dependencies the host
// does not provide, and the externals with the caller-level peer dependencies.
func newHealState(res *deps.Resolution, policy *externals.Policy) *healState {
	s := &healState{
		res:       res,
		policy:    policy,
		install:   make(map[string]string),
		installed: make(map[string]bool),
		extra:     make(map[string]bool),
	}
	for name := range res.Dependencies {
		s.extra[name] = true
	}
	for name := range res.Package.PeerDependencies {
		s.extra[name] = true
	}
	for name, spec := range res.Package.Dependencies {
		if s.isExternal(name) || policy.IsIgnored(name) {
			continue
		}
		s.install[name] = spec
	}
	s.dirty = len(s.install) > 0
	return s
}

func (s *healState) isExternal(name string) bool {
	return s.extra[name] || s.policy.IsExternal(name)
}

// sync writes the manifest and runs the installer when the install set
// changed since the last attempt.
func (s *healState) sync(ctx context.Context, installer Installer, dir string) error {
	if !s.dirty {
		return nil
	}
	if err := WriteDependencies(dir, s.install); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write package.json")
	}
	if err := installer.Install(ctx, dir); err != nil {
		return err
	}
	for name := range s.install {
		s.installed[name] = true
	}
	s.dirty = false
	return nil
}

// heal updates the state for the unresolved specifiers of a failed attempt
// and returns the dependencies it queued or externalized.
func (s *healState) heal(specifiers []string, logger *log.Logger) ([]string, error) {
	var healed []string
	for _, spec := range specifiers {
		name := externals.PackageName(spec)
		if name == "" {
			continue
		}
		if name == s.res.Name || s.installed[name] {
			return nil, errors.New(errors.ErrCodeUnbundleable,
				"%s@%s cannot be bundled: %q is unresolvable", s.res.QualifiedName(), s.res.Version, spec)
		}
		if s.policy.IsExternal(name) || s.policy.IsIgnored(name) {
			if !s.extra[name] {
				s.extra[name] = true
				healed = append(healed, name)
			}
			continue
		}
		if _, queued := s.install[name]; queued {
			continue
		}
		version, ok := s.res.Package.VersionHint(name)
		if !ok {
			version = WildcardVersion
			s.warn(logger, Warning{Dependency: name, Message: "inferred wildcard version"})
		}
		s.install[name] = version
		s.dirty = true
		healed = append(healed, name)
	}
	if len(healed) == 0 {
		return nil, errors.New(errors.ErrCodeBuildFailed,
			"bundling %s@%s failed on unresolvable imports: %v", s.res.QualifiedName(), s.res.Version, specifiers)
	}
	return healed, nil
}

func (s *healState) warn(logger *log.Logger, w Warning) {
	if slices.Contains(s.warnings, w) {
		return
	}
	s.warnings = append(s.warnings, w)
	logger.Warn(w.Message, "platform", w.Platform, "dependency", w.Dependency)
}

// finish records the final dependency state on result.
func (s *healState) finish(result *Result) *Result {
	names := s.policy.Names()
	for name := range s.extra {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	result.Externals = names
	result.Installed = maps.Clone(s.install)
	result.Warnings = s.warnings
	return result
}
