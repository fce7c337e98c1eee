package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/snackager/pkg/cache"
	"github.com/matzehuels/snackager/pkg/httputil"
	"github.com/matzehuels/snackager/pkg/observability"
)

// Client provides shared HTTP functionality for registry API clients.
// It handles caching, retry logic, and common request headers.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	ttl     time.Duration
	headers map[string]string
	backoff httputil.Backoff
}

// NewClient creates a Client with the given cache, entry TTL and default
// headers. Headers are applied to all requests made through this client.
// Pass nil for headers if no default headers are needed.
func NewClient(c cache.Cache, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:    NewHTTPClient(),
		cache:   c,
		ttl:     ttl,
		headers: headers,
		backoff: httputil.DefaultBackoff,
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// SetBackoff replaces the retry schedule for Cached and Download.
func (c *Client) SetBackoff(b httputil.Backoff) { c.backoff = b }

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is not read but a successful fetch is still
// stored. The fetch function should populate v.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	keyType, _, _ := strings.Cut(key, "/")
	if !refresh {
		data, hit, err := c.cache.Get(ctx, key)
		if err == nil && hit && json.Unmarshal(data, v) == nil {
			observability.Cache().OnCacheHit(ctx, keyType)
			return nil
		}
		observability.Cache().OnCacheMiss(ctx, keyType)
	}
	if err := c.backoff.Do(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, key, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, keyType, len(data))
		}
	}
	return nil
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.doRequest(ctx, url, headers)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrNetwork, url, err)
	}
	return nil
}

// Download performs an HTTP GET and returns the raw response body, reading at
// most limit bytes (0 means unlimited). Transient failures are retried.
func (c *Client) Download(ctx context.Context, url string, limit int64) ([]byte, error) {
	var data []byte
	err := c.backoff.Do(ctx, func() error {
		body, err := c.doRequest(ctx, url, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		r := io.Reader(body)
		if limit > 0 {
			r = io.LimitReader(body, limit+1)
		}
		data, err = io.ReadAll(r)
		if err != nil {
			return httputil.Retryable(fmt.Errorf("%w: read %s: %v", ErrNetwork, url, err))
		}
		if limit > 0 && int64(len(data)) > limit {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrNetwork, url, limit)
		}
		return nil
	})
	return data, err
}

func (c *Client) doRequest(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, httputil.Retryable(fmt.Errorf("%w: %w", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
