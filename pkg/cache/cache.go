// Package cache provides the byte caches and key layout shared by all workers.
//
// [Cache] is implemented by:
//   - [RedisCache]: the shared low-latency store used in production
//   - [FileCache]: a local directory, for the CLI
//   - [NullCache]: caching disabled
//
// [Keyer] builds every key of the status store so the layout lives in one place:
//
//	buildStatus/<cachePrefix>/<name+deep>@<version>-<platforms>
//	latestVersion/<cachePrefix>/<name+deep>
//	registryMetadata/<scopedId>
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values with an optional TTL.
type Cache interface {
	// Get returns the value for key. hit is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
