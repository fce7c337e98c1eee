package coordinator

import (
	"context"
	"encoding/json"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/snackager/pkg/bundler"
	"github.com/matzehuels/snackager/pkg/cache"
	"github.com/matzehuels/snackager/pkg/deps"
	"github.com/matzehuels/snackager/pkg/errors"
	"github.com/matzehuels/snackager/pkg/request"
)

const (
	// DoneMarker is the zero-byte completion marker of a platform namespace.
	// It is written after every other file.
	DoneMarker = ".done"

	// IndexFile lists the output files of a platform namespace.
	IndexFile = "files.json"
)

// persist writes the output of every built platform. Platforms are written
// concurrently; within a platform the marker goes last.
func (c *Coordinator) persist(ctx context.Context, keyer cache.Keyer, handle string, result *bundler.Result) error {
	g, ctx := errgroup.WithContext(ctx)
	for p, files := range result.Bundles {
		g.Go(func() error {
			names := slices.Sorted(maps.Keys(files))
			for _, name := range names {
				if err := c.storage.Put(ctx, keyer.Artifact(handle, string(p), name), files[name]); err != nil {
					return errors.Wrap(errors.ErrCodeInternal, err, "store %s/%s", p, name)
				}
			}
			index, err := json.Marshal(names)
			if err != nil {
				return err
			}
			if err := c.storage.Put(ctx, keyer.Artifact(handle, string(p), IndexFile), index); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "store %s index", p)
			}
			if err := c.storage.Put(ctx, keyer.Artifact(handle, string(p), DoneMarker), nil); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "mark %s done", p)
			}
			return nil
		})
	}
	return g.Wait()
}

// updateLatest points the floating handle of res at its pinned handle.
//
// When the recorded latest version differs from res.Version every requested
// platform is redirected, otherwise only the freshly built ones. Concurrent
// writers for different versions race; the last one wins.
func (c *Coordinator) updateLatest(ctx context.Context, keyer cache.Keyer, res *deps.Resolution, requested, built request.Platforms) error {
	if !res.IsLatest || res.FloatingHandle == "" {
		return nil
	}
	key := keyer.LatestVersion(res.QualifiedName())
	current, ok, err := c.latest.Get(ctx, key)
	if err != nil {
		return err
	}
	platforms := built
	if !ok || string(current) != res.Version {
		platforms = requested
	}
	for _, p := range platforms {
		if err := c.redirect(ctx, keyer, res, p); err != nil {
			return err
		}
	}
	if ok && string(current) == res.Version {
		return nil
	}
	c.logger.Info("floating handle updated", "handle", res.FloatingHandle, "version", res.Version, "previous", string(current))
	return c.latest.Set(ctx, key, []byte(res.Version), 0)
}

// redirect points every file of the floating namespace of p at the pinned
// namespace, marker last.
func (c *Coordinator) redirect(ctx context.Context, keyer cache.Keyer, res *deps.Resolution, p request.Platform) error {
	data, err := c.storage.Get(ctx, keyer.Artifact(res.Handle, string(p), IndexFile))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "read %s index", p)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "decode %s index", p)
	}
	names = append(names, IndexFile, DoneMarker)
	for _, name := range names {
		from := keyer.Artifact(res.FloatingHandle, string(p), name)
		to := keyer.Artifact(res.Handle, string(p), name)
		if err := c.storage.Redirect(ctx, from, to); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "redirect %s", from)
		}
	}
	return nil
}
