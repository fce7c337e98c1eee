// Package observability provides hooks for metrics, alerting, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. The serve command registers Prometheus
// implementations at startup; libraries only ever call the hooks.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetBuildHooks(&myBuildHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Build().OnBuildStart(ctx, handle, platforms)
//	// ... build ...
//	observability.Build().OnBuildComplete(ctx, handle, platforms, attempts, duration, err)
//
// Unexpected failures (anything [errors.Expected] rejects) are reported through
// [BuildHooks.OnUnexpectedError], the alerting path.
//
// [errors.Expected]: github.com/matzehuels/snackager/pkg/errors.Expected
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Build Hooks
// =============================================================================

// Outcomes reported by [BuildHooks.OnOutcome].
const (
	OutcomeCached  = "cached"
	OutcomePending = "pending"
	OutcomeBuilt   = "built"
	OutcomeFailed  = "failed"
)

// BuildHooks receives events from the build coordinator and bundler.
type BuildHooks interface {
	// OnOutcome records how a bundle request was answered.
	OnOutcome(ctx context.Context, outcome string)

	// Build events
	OnBuildStart(ctx context.Context, handle string, platforms []string)
	OnBuildComplete(ctx context.Context, handle string, platforms []string, attempts int, duration time.Duration, err error)

	// OnDependencyHealed records a dependency installed or externalized after
	// a failed build attempt.
	OnDependencyHealed(ctx context.Context, handle, dependency string)

	// OnUnexpectedError reports a failure that is not caused by the request.
	OnUnexpectedError(ctx context.Context, handle string, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopBuildHooks is a no-op implementation of BuildHooks.
type NoopBuildHooks struct{}

func (NoopBuildHooks) OnOutcome(context.Context, string)              {}
func (NoopBuildHooks) OnBuildStart(context.Context, string, []string) {}
func (NoopBuildHooks) OnBuildComplete(context.Context, string, []string, int, time.Duration, error) {
}
func (NoopBuildHooks) OnDependencyHealed(context.Context, string, string) {}
func (NoopBuildHooks) OnUnexpectedError(context.Context, string, error)   {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var registry = struct {
	sync.RWMutex
	build BuildHooks
	cache CacheHooks
	http  HTTPHooks
}{
	build: NoopBuildHooks{},
	cache: NoopCacheHooks{},
	http:  NoopHTTPHooks{},
}

func set[T any](slot *T, h T) {
	if any(h) == nil {
		return
	}
	registry.Lock()
	defer registry.Unlock()
	*slot = h
}

func get[T any](slot *T) T {
	registry.RLock()
	defer registry.RUnlock()
	return *slot
}

// SetBuildHooks registers build hooks. A nil h is ignored.
func SetBuildHooks(h BuildHooks) { set(&registry.build, h) }

// SetCacheHooks registers cache hooks. A nil h is ignored.
func SetCacheHooks(h CacheHooks) { set(&registry.cache, h) }

// SetHTTPHooks registers HTTP client hooks. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) { set(&registry.http, h) }

// Build returns the registered build hooks.
func Build() BuildHooks { return get(&registry.build) }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return get(&registry.cache) }

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks { return get(&registry.http) }

// Reset restores the no-op hooks. Tests that install hooks defer it.
func Reset() {
	registry.Lock()
	defer registry.Unlock()
	registry.build = NoopBuildHooks{}
	registry.cache = NoopCacheHooks{}
	registry.http = NoopHTTPHooks{}
}
