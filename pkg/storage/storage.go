// Package storage persists bundle artifacts.
//
// Artifacts are addressed by slash-separated paths built with
// [cache.Keyer.Artifact]:
//
//	<cachePrefix>/<handle>-<platform>/bundle.js
//	<cachePrefix>/<handle>-<platform>/bundle.js.map
//	<cachePrefix>/<handle>-<platform>/assets/<file>
//	<cachePrefix>/<handle>-<platform>/.done
//
// Objects are written once and never mutated in place (new versions get new
// handles). A redirect makes one path resolve to another; it is how floating
// "@latest" handles point at the build that currently satisfies them.
//
// Three backends implement [Store]: [S3Store] for production, [FileStore] for
// local use and [MemoryStore] for tests.
//
// [cache.Keyer.Artifact]: github.com/matzehuels/snackager/pkg/cache.Keyer.Artifact
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNotFound is returned by Get for paths that do not exist.
var ErrNotFound = errors.New("artifact not found")

// Store is a blob store for bundle artifacts.
type Store interface {
	// Put writes data to p, replacing any existing object or redirect.
	Put(ctx context.Context, p string, data []byte) error

	// Get reads the object at p, following one redirect.
	Get(ctx context.Context, p string) ([]byte, error)

	// Exists reports whether p holds an object or a redirect.
	Exists(ctx context.Context, p string) (bool, error)

	// Redirect makes from resolve to the object at to.
	Redirect(ctx context.Context, from, to string) error
}

// cleanPath validates p and returns it in canonical form.
func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", errors.New("invalid artifact path: " + p)
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", errors.New("invalid artifact path: " + p)
	}
	return c, nil
}
