// Package integrations provides the shared HTTP client used to talk to the
// package registry.
//
// [Client] wraps an [http.Client] with a bounded timeout, retry with backoff
// for transient failures, default headers, and JSON response caching through
// [cache.Cache]. Registry-specific clients live in subpackages; today that is
// [npm], which implements [deps.Fetcher].
//
// Failures are classified before they leave the package: a 404 becomes
// [ErrNotFound] and everything else wraps [ErrNetwork]. Registry clients map
// these to the codes of [errors].
//
// [npm]: github.com/matzehuels/snackager/pkg/integrations/npm
// [cache.Cache]: github.com/matzehuels/snackager/pkg/cache.Cache
// [deps.Fetcher]: github.com/matzehuels/snackager/pkg/deps.Fetcher
// [errors]: github.com/matzehuels/snackager/pkg/errors
package integrations
