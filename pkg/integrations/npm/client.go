package npm

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/snackager/pkg/cache"
	"github.com/matzehuels/snackager/pkg/deps"
	"github.com/matzehuels/snackager/pkg/errors"
	"github.com/matzehuels/snackager/pkg/integrations"
)

// DefaultRegistry is the public npm registry.
const DefaultRegistry = "https://registry.npmjs.org"

// MetadataTTL is how long registry documents stay cached.
const MetadataTTL = time.Hour

// maxTarballSize bounds source distribution downloads.
const maxTarballSize = 256 << 20

// acceptHeader prefers the abbreviated install document, which is a fraction
// of the size of the full one.
const acceptHeader = "application/vnd.npm.install-v1+json; q=1.0, application/json; q=0.8, */*"

// Client fetches package metadata and tarballs from an npm registry.
type Client struct {
	*integrations.Client
	baseURL string
	logger  *log.Logger
	group   singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another registry.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a registry client caching documents in c for ttl.
func NewClient(c cache.Cache, ttl time.Duration, opts ...Option) *Client {
	client := &Client{
		Client:  integrations.NewClient(c, ttl, map[string]string{"Accept": acceptHeader}),
		baseURL: DefaultRegistry,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// FetchMetadata returns the registry document of name. Concurrent calls for
// the same name within one process share a single request.
func (c *Client) FetchMetadata(ctx context.Context, name string, bypassCache bool) (*deps.PackageMetadata, error) {
	v, err, _ := c.group.Do(name, func() (any, error) {
		var meta deps.PackageMetadata
		err := c.Cached(ctx, cache.RegistryMetadata(name), bypassCache, &meta, func() error {
			return c.Get(ctx, c.metadataURL(name), &meta)
		})
		if err != nil {
			return nil, classify(err, "fetch metadata for %s", name)
		}
		if meta.Name == "" {
			meta.Name = name
		}
		return &meta, nil
	})
	if err != nil {
		c.logger.Debug("metadata fetch failed", "package", name, "err", err)
		return nil, err
	}
	return v.(*deps.PackageMetadata), nil
}

// FetchTarball downloads the source distribution of a version.
func (c *Client) FetchTarball(ctx context.Context, pv *deps.PackageVersion) ([]byte, error) {
	if pv.Dist.Tarball == "" {
		return nil, errors.New(errors.ErrCodeInternal, "%s@%s has no tarball", pv.Name, pv.Version)
	}
	data, err := c.Download(ctx, pv.Dist.Tarball, maxTarballSize)
	if err != nil {
		return nil, classify(err, "download %s@%s", pv.Name, pv.Version)
	}
	return data, nil
}

// metadataURL escapes the scope separator: "@scope%2Fname".
func (c *Client) metadataURL(name string) string {
	return c.baseURL + "/" + url.PathEscape(name)
}

func classify(err error, format string, args ...any) error {
	switch {
	case stderrors.Is(err, integrations.ErrNotFound):
		return errors.Wrap(errors.ErrCodePackageNotFound, err, format, args...)
	case isTimeout(err):
		return errors.Wrap(errors.ErrCodeTimeout, err, format, args...)
	default:
		return errors.Wrap(errors.ErrCodeNetwork, err, format, args...)
	}
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return stderrors.As(err, &ne) && ne.Timeout()
}

var _ deps.Fetcher = (*Client)(nil)
