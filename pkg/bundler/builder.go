// Package bundler compiles a resolved package version into one bundle per
// platform.
//
// # Healing loop
//
// Many published packages import modules they never declare. [Builder.Build]
// runs a bounded loop: install the dependency set, build every platform,
// and on failure let a [Classifier] extract the unresolved specifiers. Each
// missing package is either installed (with the version the building package
// hints at, or "*" with a [Warning]) or, when the host provides it, added to
// the externals of the next attempt. A package that is still unresolved after
// being installed makes the package unbundleable.
//
// # Platforms
//
// Entry points are resolved per platform with the extension order
// platform-qualified, "native"-qualified (not on web), then plain. Platforms
// without an entry get an empty bundle; a package exposing only type
// declarations gets empty bundles everywhere. When only web fails because it
// pulls in a native-only source file and other platforms were requested, web
// is dropped to an empty bundle instead of failing the build.
package bundler

import (
	"context"
	"maps"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/snackager/pkg/deps"
	"github.com/matzehuels/snackager/pkg/errors"
	"github.com/matzehuels/snackager/pkg/externals"
	"github.com/matzehuels/snackager/pkg/observability"
	"github.com/matzehuels/snackager/pkg/request"
)

// DefaultMaxAttempts bounds the healing loop.
const DefaultMaxAttempts = 10

// WildcardVersion is installed when no version can be inferred.
const WildcardVersion = "*"

// TarballFetcher downloads the source distribution of a version.
type TarballFetcher interface {
	FetchTarball(ctx context.Context, pv *deps.PackageVersion) ([]byte, error)
}

// Job is one build request.
type Job struct {
	Resolution *deps.Resolution
	Platforms  request.Platforms // Platforms to build
}

// Warning is a non-fatal, observable build event.
type Warning struct {
	Platform   request.Platform `json:"platform,omitempty"`
	Dependency string           `json:"dependency,omitempty"`
	Message    string           `json:"message"`
}

// Result holds the outputs of a successful build.
type Result struct {
	Bundles         map[request.Platform]Files
	Externals       []string          // Every external of the final attempt, sorted
	ExternalImports []string          // Externals the bundles actually import, sorted
	Installed       map[string]string // Installed dependencies, including healed ones
	Attempts        int
	TypesOnly       bool
	Warnings        []Warning
}

// Builder runs builds. It is safe for concurrent use; every build gets its
// own workspace.
type Builder struct {
	fetcher     TarballFetcher
	policy      *externals.Policy
	installer   Installer
	toolchain   Toolchain
	classifier  Classifier
	logger      *log.Logger
	workDir     string
	maxAttempts int
}

// Option configures a Builder.
type Option func(*Builder)

func WithInstaller(i Installer) Option   { return func(b *Builder) { b.installer = i } }
func WithToolchain(t Toolchain) Option   { return func(b *Builder) { b.toolchain = t } }
func WithClassifier(c Classifier) Option { return func(b *Builder) { b.classifier = c } }
func WithLogger(l *log.Logger) Option    { return func(b *Builder) { b.logger = l } }
func WithWorkDir(dir string) Option      { return func(b *Builder) { b.workDir = dir } }

// WithMaxAttempts bounds the healing loop. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

// New creates a Builder using npm and esbuild unless overridden.
func New(fetcher TarballFetcher, policy *externals.Policy, opts ...Option) *Builder {
	b := &Builder{
		fetcher:     fetcher,
		policy:      policy,
		installer:   &NpmInstaller{},
		toolchain:   &Esbuild{},
		classifier:  NewPatternClassifier(),
		logger:      log.Default(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// platformVariant matches references to native-only source variants.
var platformVariant = regexp.MustCompile(`\.(?:ios|android|native)\.(?:[cm]?js|jsx|tsx?)\b`)

// Build fetches, installs and bundles job. The workspace is always removed.
func (b *Builder) Build(ctx context.Context, job Job) (*Result, error) {
	res := job.Resolution
	logger := b.logger.With("handle", res.Handle)

	ws, err := NewWorkspace(b.workDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create workspace")
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			logger.Warn("workspace cleanup failed", "dir", ws.Dir, "err", err)
		}
	}()

	tarball, err := b.fetcher.FetchTarball(ctx, res.Package)
	if err != nil {
		return nil, err
	}
	if err := Extract(tarball, ws.PackageDir); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBuildFailed, err, "extract %s@%s", res.Name, res.Version)
	}
	manifest, err := ReadManifest(ws.PackageDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBuildFailed, err, "read package.json of %s@%s", res.Name, res.Version)
	}

	st := newHealState(res, b.policy)
	platforms := job.Platforms
	result := &Result{Bundles: make(map[request.Platform]Files, len(platforms))}

	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		result.Attempts = attempt
		logger.Debug("build attempt", "attempt", attempt, "platforms", platforms.String())

		if err := st.sync(ctx, b.installer, ws.PackageDir); err != nil {
			return nil, err
		}

		entries := make(map[request.Platform]string, len(platforms))
		for _, p := range platforms {
			if entry, ok := ResolveEntry(ws.PackageDir, res.Deep, p, manifest); ok {
				entries[p] = entry
			} else {
				result.Bundles[p] = emptyBundle()
			}
		}
		if len(entries) == 0 {
			if TypesOnly(ws.PackageDir, res.Deep, manifest) {
				logger.Info("types-only package, emitting empty bundles")
				for _, p := range platforms {
					result.Bundles[p] = emptyBundle()
				}
				result.TypesOnly = true
				return st.finish(result), nil
			}
			return nil, errors.New(errors.ErrCodeUnbundleable,
				"%s@%s has no entry point for %s", res.QualifiedName(), res.Version, platforms)
		}
		for _, p := range platforms {
			if _, ok := entries[p]; !ok {
				st.warn(logger, Warning{Platform: p, Message: "no entry point, emitting an empty bundle"})
			}
		}

		built, imports, failures := b.buildAll(ctx, ws.PackageDir, entries, st.isExternal)
		maps.Copy(result.Bundles, built)
		result.ExternalImports = mergeSorted(result.ExternalImports, imports)
		if len(failures) == 0 {
			return st.finish(result), nil
		}

		if degradable(failures, platforms) {
			st.warn(logger, Warning{Platform: request.Web, Message: "web build references a native-only source, emitting an empty bundle"})
			result.Bundles[request.Web] = emptyBundle()
			return st.finish(result), nil
		}

		missing, err := b.diagnose(failures, platforms)
		if err != nil {
			return nil, err
		}
		healed, err := st.heal(missing, logger)
		if err != nil {
			return nil, err
		}
		for _, name := range healed {
			observability.Build().OnDependencyHealed(ctx, res.Handle, name)
		}
		logger.Info("healing build", "attempt", attempt, "dependencies", healed)
	}

	return nil, errors.New(errors.ErrCodeTooManyCycles,
		"%s@%s did not build after %d attempts", res.QualifiedName(), res.Version, b.maxAttempts)
}

// buildAll runs the toolchain for every entry concurrently. The batch is
// evaluated together: outputs of succeeding platforms are returned alongside
// per-platform failures.
func (b *Builder) buildAll(ctx context.Context, dir string, entries map[request.Platform]string, external func(string) bool) (map[request.Platform]Files, []string, map[request.Platform]error) {
	var (
		mu       sync.Mutex
		built    = make(map[request.Platform]Files, len(entries))
		failures = make(map[request.Platform]error)
		imports  []string
		g        errgroup.Group
	)
	for p, entry := range entries {
		g.Go(func() error {
			start := time.Now()
			files, imp, err := b.toolchain.Build(ctx, Target{Platform: p, Entry: entry, Dir: dir, External: external})
			b.logger.Debug("toolchain finished", "platform", p, "duration", time.Since(start), "ok", err == nil)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[p] = err
				return nil
			}
			built[p] = files
			imports = mergeSorted(imports, imp)
			return nil
		})
	}
	_ = g.Wait()
	return built, imports, failures
}

// diagnose collects the unresolved specifiers of all failures. A failure the
// classifier cannot explain is returned as a build error.
func (b *Builder) diagnose(failures map[request.Platform]error, platforms request.Platforms) ([]string, error) {
	var missing []string
	for _, p := range platforms {
		err, ok := failures[p]
		if !ok {
			continue
		}
		d, ok := b.classifier.Classify(err)
		if !ok {
			return nil, errors.Wrap(errors.ErrCodeBuildFailed, err, "bundling failed")
		}
		for _, spec := range d.Unresolved {
			if !slices.Contains(missing, spec) {
				missing = append(missing, spec)
			}
		}
	}
	return missing, nil
}

// degradable reports whether only web failed, because of a reference to a
// native-only source variant, while other platforms were requested.
func degradable(failures map[request.Platform]error, platforms request.Platforms) bool {
	err, ok := failures[request.Web]
	if !ok || len(failures) != 1 || len(platforms) < 2 {
		return false
	}
	for _, msg := range messages(err) {
		if platformVariant.MatchString(msg) {
			return true
		}
	}
	return false
}

func emptyBundle() Files {
	return Files{BundleFile: {}}
}

func mergeSorted(a, b []string) []string {
	for _, s := range b {
		if !slices.Contains(a, s) {
			a = append(a, s)
		}
	}
	slices.Sort(a)
	return a
}
