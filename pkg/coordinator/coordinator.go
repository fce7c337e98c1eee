// Package coordinator answers bundle requests.
//
// A [Coordinator] decides, per request, whether the bundle is already built,
// being built by some worker, failed recently, or must be built now. The only
// state it trusts across requests lives in the shared status store and in
// artifact storage, so any number of stateless workers can run side by side.
//
// # Request flow
//
//  1. Resolve the tag against registry metadata and compute the handle.
//  2. Unless rebuilding, answer from the status record: pending is returned
//     as is, a stored error is raised again with its original code.
//  3. Drop platforms whose completion marker exists. Nothing left means the
//     bundle is ready.
//  4. Claim the pending lease. Losing the claim means another worker builds.
//  5. Build the remaining platforms, persist every file, then the marker.
//  6. On failure store an error record with a short TTL.
//
// Builds are detached from the request context: a client that stops polling
// does not cancel a build other clients are waiting for.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/snackager/pkg/bundler"
	"github.com/matzehuels/snackager/pkg/cache"
	"github.com/matzehuels/snackager/pkg/deps"
	"github.com/matzehuels/snackager/pkg/errors"
	"github.com/matzehuels/snackager/pkg/externals"
	"github.com/matzehuels/snackager/pkg/observability"
	"github.com/matzehuels/snackager/pkg/request"
	"github.com/matzehuels/snackager/pkg/status"
	"github.com/matzehuels/snackager/pkg/storage"
)

const (
	// DefaultPendingTTL bounds how long a pending claim is trusted.
	DefaultPendingTTL = 5 * time.Minute

	// DefaultErrorTTL is the fail-fast window after a failed build.
	DefaultErrorTTL = time.Minute
)

// Builder builds bundles. *bundler.Builder implements it.
type Builder interface {
	Build(ctx context.Context, job bundler.Job) (*bundler.Result, error)
}

// Config holds the collaborators and settings of a Coordinator.
type Config struct {
	Fetcher deps.Fetcher
	Policy  *externals.Policy
	Builder Builder
	Status  status.Store
	Storage storage.Store
	Latest  cache.Cache // Records the version floating handles point at
	Epochs  cache.Epochs
	Logger  *log.Logger

	Debug       bool          // Rebuild instead of re-raising stored errors
	PendingTTL  time.Duration // Defaults to DefaultPendingTTL
	ErrorTTL    time.Duration // Defaults to DefaultErrorTTL
	RenewLeases bool          // Renew the pending claim while building
}

// Coordinator answers bundle requests. It is safe for concurrent use.
type Coordinator struct {
	fetcher deps.Fetcher
	policy  *externals.Policy
	builder Builder
	status  status.Store
	storage storage.Store
	latest  cache.Cache
	epochs  cache.Epochs
	logger  *log.Logger

	debug       bool
	pendingTTL  time.Duration
	errorTTL    time.Duration
	renewLeases bool
}

// New creates a Coordinator. Fetcher, Builder, Status and Storage are
// required.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		fetcher:     cfg.Fetcher,
		policy:      cfg.Policy,
		builder:     cfg.Builder,
		status:      cfg.Status,
		storage:     cfg.Storage,
		latest:      cfg.Latest,
		epochs:      cfg.Epochs,
		logger:      cfg.Logger,
		debug:       cfg.Debug,
		pendingTTL:  cfg.PendingTTL,
		errorTTL:    cfg.ErrorTTL,
		renewLeases: cfg.RenewLeases,
	}
	if c.policy == nil {
		c.policy = externals.Default()
	}
	if c.latest == nil {
		c.latest = cache.NewNullCache()
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.pendingTTL <= 0 {
		c.pendingTTL = DefaultPendingTTL
	}
	if c.errorTTL <= 0 {
		c.errorTTL = DefaultErrorTTL
	}
	return c
}

// Bundle answers req. It returns a pending response while a build is in
// flight anywhere, a ready response once every requested platform is
// persisted, or the error of the build.
func (c *Coordinator) Bundle(ctx context.Context, req *request.Request) (*Response, error) {
	meta, err := c.fetcher.FetchMetadata(ctx, req.Name(), req.BypassCache)
	if err != nil {
		return nil, err
	}
	res, err := deps.Resolve(meta, req.Deep, req.Tag, c.policy)
	if err != nil {
		return nil, err
	}

	keyer := cache.NewKeyer(c.epochs.Prefix(res.Name))
	statusKey := keyer.BuildStatus(res.QualifiedName(), res.Version, req.Platforms.String())
	logger := c.logger.With("handle", res.Handle, "platforms", req.Platforms.String())

	if !req.Rebuild {
		rec, err := c.status.Get(ctx, statusKey)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "read build status")
		}
		switch {
		case rec == nil:
		case rec.State == status.StatePending:
			observability.Build().OnOutcome(ctx, observability.OutcomePending)
			return pendingResponse(res), nil
		case rec.State == status.StateError && !c.debug:
			observability.Build().OnOutcome(ctx, observability.OutcomeFailed)
			return nil, rec.Err()
		case rec.State == status.StateError:
			logger.Debug("debug mode, discarding stored error", "message", rec.Message)
			if err := c.status.Release(ctx, statusKey); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInternal, err, "clear build status")
			}
		}
	}

	toBuild, err := c.missingPlatforms(ctx, keyer, res.Handle, req.Platforms)
	if err != nil {
		return nil, err
	}
	if len(toBuild) == 0 {
		if err := c.updateLatest(ctx, keyer, res, req.Platforms, nil); err != nil {
			logger.Warn("floating handle update failed", "err", err)
		}
		observability.Build().OnOutcome(ctx, observability.OutcomeCached)
		return readyResponse(res, keyer, req.VersionedHandle), nil
	}

	claimed, err := c.status.TryAcquire(ctx, statusKey, c.pendingTTL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "claim build")
	}
	if !claimed && !req.Rebuild {
		observability.Build().OnOutcome(ctx, observability.OutcomePending)
		return pendingResponse(res), nil
	}

	if err := c.build(context.WithoutCancel(ctx), logger, keyer, statusKey, res, req.Platforms, toBuild); err != nil {
		observability.Build().OnOutcome(ctx, observability.OutcomeFailed)
		return nil, err
	}
	observability.Build().OnOutcome(ctx, observability.OutcomeBuilt)
	return readyResponse(res, keyer, req.VersionedHandle), nil
}

// missingPlatforms returns the platforms without a completion marker.
func (c *Coordinator) missingPlatforms(ctx context.Context, keyer cache.Keyer, handle string, platforms request.Platforms) (request.Platforms, error) {
	var missing request.Platforms
	for _, p := range platforms {
		ok, err := c.storage.Exists(ctx, keyer.Artifact(handle, string(p), DoneMarker))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "check %s artifacts", p)
		}
		if !ok {
			missing = append(missing, p)
		}
	}
	return missing, nil
}

// build runs the builder for platforms while holding the claim on statusKey
// and records the outcome. requested is the full platform set of the request.
func (c *Coordinator) build(ctx context.Context, logger *log.Logger, keyer cache.Keyer, statusKey string, res *deps.Resolution, requested, platforms request.Platforms) error {
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = string(p)
	}
	hooks := observability.Build()
	hooks.OnBuildStart(ctx, res.Handle, names)
	logger.Info("building", "version", res.Version)

	stop := c.renew(ctx, logger, statusKey)
	start := time.Now()
	result, err := c.builder.Build(ctx, bundler.Job{Resolution: res, Platforms: platforms})
	if err == nil {
		err = c.persist(ctx, keyer, res.Handle, result)
	}
	stop()

	attempts := 0
	if result != nil {
		attempts = result.Attempts
	}
	duration := time.Since(start)
	hooks.OnBuildComplete(ctx, res.Handle, names, attempts, duration, err)

	if err != nil {
		if !errors.Expected(err) {
			hooks.OnUnexpectedError(ctx, res.Handle, err)
			logger.Error("build failed", "err", err, "duration", duration)
		} else {
			logger.Info("package cannot be bundled", "err", err, "duration", duration)
		}
		if ferr := c.status.Fail(ctx, statusKey, err, c.errorTTL); ferr != nil {
			logger.Error("cannot record build error", "err", ferr)
		}
		return err
	}

	logger.Info("built", "attempts", attempts, "duration", duration,
		"externals", len(result.Externals), "warnings", len(result.Warnings))
	if err := c.updateLatest(ctx, keyer, res, requested, platforms); err != nil {
		logger.Warn("floating handle update failed", "err", err)
	}
	if err := c.status.Release(ctx, statusKey); err != nil {
		logger.Warn("cannot clear build status", "err", err)
	}
	return nil
}

// renew keeps the claim on key alive until the returned function is called.
// It does nothing unless lease renewal is enabled.
func (c *Coordinator) renew(ctx context.Context, logger *log.Logger, key string) func() {
	if !c.renewLeases {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.pendingTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ok, err := c.status.Renew(ctx, key, c.pendingTTL)
				if err != nil || !ok {
					logger.Warn("lease renewal failed", "ok", ok, "err", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
