// Package request parses bundle request strings.
//
// A request names a package, an optional deep import within it, a version tag
// and the set of platforms to build for:
//
//	[@scope/]name[/deepPath][@tag][?platforms=ios,android,web&rebuild=true]
//
// Parsing has no side effects and never touches the network: requests for
// modules the host runtime supplies itself are rejected here.
package request

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/matzehuels/snackager/pkg/errors"
	"github.com/matzehuels/snackager/pkg/externals"
)

// DefaultTag is used when a request does not name a version.
const DefaultTag = "latest"

// Request is an immutable, validated bundle request.
type Request struct {
	Scope     string    // Scope without the leading "@" (optional)
	ID        string    // Package id without scope
	Deep      string    // Subpath within the package (optional)
	Tag       string    // Exact version, dist-tag, range, "latest" or "*"
	Platforms Platforms // Requested platforms, never empty

	Rebuild         bool // Ignore status records and rebuild missing platforms
	BypassCache     bool // Skip the registry metadata cache
	VersionedHandle bool // Return the cache-prefixed handle format
}

// Name returns the registry name, e.g. "@expo/vector-icons" or "lodash".
func (r *Request) Name() string {
	if r.Scope != "" {
		return "@" + r.Scope + "/" + r.ID
	}
	return r.ID
}

// QualifiedName returns the name including the deep import path.
func (r *Request) QualifiedName() string {
	if r.Deep != "" {
		return r.Name() + "/" + r.Deep
	}
	return r.Name()
}

// String renders the request back into its canonical spec form.
func (r *Request) String() string {
	return r.QualifiedName() + "@" + r.Tag + "?platforms=" + r.Platforms.String()
}

var specPattern = regexp.MustCompile(`^/?(?:@([^/?#@]+)/)?([^/?#@]+)(?:/([^?#@]+))?(?:@([^?#]*))?(?:\?(.*))?$`)

// Parser turns raw request strings into Requests.
type Parser struct {
	policy *externals.Policy
}

// NewParser creates a Parser that rejects core modules of policy. A nil
// policy means externals.Default().
func NewParser(policy *externals.Policy) *Parser {
	if policy == nil {
		policy = externals.Default()
	}
	return &Parser{policy: policy}
}

// Parse parses a raw spec such as "/@scope/name/deep@1.2.3?platforms=ios".
func (p *Parser) Parse(raw string) (*Request, error) {
	m := specPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "invalid bundle request: %q", raw)
	}
	query, err := url.ParseQuery(m[5])
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, err, "invalid query in %q", raw)
	}
	return p.build(m[1], m[2], strings.TrimSuffix(m[3], "/"), m[4], query)
}

// ParseWithQuery parses spec (without a query) and takes flags and platforms
// from query, as received by the HTTP layer.
func (p *Parser) ParseWithQuery(spec string, query url.Values) (*Request, error) {
	m := specPattern.FindStringSubmatch(spec)
	if m == nil || m[5] != "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "invalid bundle request: %q", spec)
	}
	return p.build(m[1], m[2], strings.TrimSuffix(m[3], "/"), m[4], query)
}

func (p *Parser) build(scope, id, deep, tag string, query url.Values) (*Request, error) {
	if id == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "bundle request is missing a package id")
	}
	req := &Request{Scope: scope, ID: id, Deep: deep, Tag: tag}
	if req.Tag == "" {
		req.Tag = DefaultTag
	}
	if err := errors.ValidatePackageName(req.Name()); err != nil {
		return nil, err
	}
	if err := errors.ValidateSubpath(req.Deep); err != nil {
		return nil, err
	}

	platforms, err := parsePlatforms(query.Get("platforms"))
	if err != nil {
		return nil, err
	}
	req.Platforms = platforms
	req.Rebuild = flag(query, "rebuild")
	req.BypassCache = flag(query, "bypassCache")
	req.VersionedHandle = flag(query, "version_snackager")

	if p.policy.IsCore(req.QualifiedName()) {
		return nil, errors.New(errors.ErrCodeCoreModule,
			"bundling core module %s is prohibited, it is provided by the runtime", req.QualifiedName())
	}
	return req, nil
}

func parsePlatforms(s string) (Platforms, error) {
	if strings.TrimSpace(s) == "" {
		return NewPlatforms(DefaultPlatforms...), nil
	}
	var ps []Platform
	for _, part := range strings.Split(s, ",") {
		pl := Platform(strings.ToLower(strings.TrimSpace(part)))
		if pl == "" {
			continue
		}
		if !pl.Valid() {
			return nil, errors.New(errors.ErrCodeInvalidRequest, "unsupported platform %q", part)
		}
		ps = append(ps, pl)
	}
	if len(ps) == 0 {
		return NewPlatforms(DefaultPlatforms...), nil
	}
	return NewPlatforms(ps...), nil
}

func flag(q url.Values, key string) bool {
	if !q.Has(key) {
		return false
	}
	v := q.Get(key)
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
