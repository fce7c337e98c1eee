// Package httputil retries outbound registry and tarball requests.
//
// A [Backoff] re-runs an operation only for failures wrapped in
// [RetryableError], which the registry client uses for network errors and 5xx
// responses. A 404 or an undecodable body is returned at once.
//
//	err := httputil.DefaultBackoff.Do(ctx, func() error {
//	    return fetch(ctx, url)
//	})
package httputil
