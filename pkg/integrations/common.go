package integrations

import (
	stderrors "errors"
	"net/http"
	"time"
)

// httpTimeout bounds a single registry round trip, body included.
const httpTimeout = 10 * time.Second

// Sentinel failures returned by [Client]. Callers map them to error codes.
var (
	ErrNotFound = stderrors.New("not found in registry")
	ErrNetwork  = stderrors.New("registry request failed")
)

// NewHTTPClient returns the client used for registry and tarball requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}
