// Package deps pins version tags to published versions and computes the
// dependency set a bundle declares to its host.
//
// # Version resolution
//
// [ResolveVersion] applies the first matching rule:
//  1. the tag is a published version
//  2. the tag is a dist-tag (used even if the mapped version is unpublished)
//  3. the tag is a semver range: the highest satisfying version wins
//  4. the tag is "*" and nothing satisfied it: the "latest" dist-tag
//
// The result must be strict semver.
//
// # Dependency resolution
//
// [ResolveDependencies] turns declared peer dependencies into installable
// specs and promotes ordinary dependencies that the host runtime provides
// (authors frequently forget to declare those as peers).
package deps

import (
	"context"
	"strings"
)

// Fetcher retrieves registry metadata for a package.
type Fetcher interface {
	// FetchMetadata returns all published versions and dist-tags of name.
	// If bypassCache is true, cached metadata is ignored.
	FetchMetadata(ctx context.Context, name string, bypassCache bool) (*PackageMetadata, error)
}

// PackageMetadata is the registry document of a package.
type PackageMetadata struct {
	Name     string                     `json:"name"`
	Versions map[string]*PackageVersion `json:"versions"`
	DistTags map[string]string          `json:"dist-tags"`
}

// Latest returns the version of the "latest" dist-tag.
func (m *PackageMetadata) Latest() string {
	return m.DistTags["latest"]
}

// PackageVersion is one published version of a package.
type PackageVersion struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
	DevDependencies  map[string]string `json:"devDependencies,omitempty"`
	Dist             Dist              `json:"dist"`
}

// Dist locates the source distribution of a version.
type Dist struct {
	Tarball   string `json:"tarball"`
	Shasum    string `json:"shasum,omitempty"`
	Integrity string `json:"integrity,omitempty"`
}

// VersionHint returns the range this version declares for dependency name,
// looking at dependencies, peerDependencies and devDependencies in that order.
func (v *PackageVersion) VersionHint(name string) (string, bool) {
	for _, m := range []map[string]string{v.Dependencies, v.PeerDependencies, v.DevDependencies} {
		if spec, ok := m[name]; ok && spec != "" {
			return spec, true
		}
	}
	return "", false
}

// DependencySet maps dependency names to installable version specs. A nil spec
// means the dependency is required but must not be pinned or installed under
// its declared name.
type DependencySet map[string]*string

// Pinned returns a spec pointer for use in a DependencySet.
func Pinned(spec string) *string { return &spec }

// Names returns the dependency names of the set.
func (s DependencySet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}

// Handle returns the content address of an exact (package, subpath, version):
// "<name>[~<deep>]@<version>" with every path separator flattened to "~".
func Handle(name, deep, version string) string {
	h := name
	if deep != "" {
		h += "~" + deep
	}
	return strings.ReplaceAll(h+"@"+version, "/", "~")
}

// FloatingVersion is the version literal of floating handles.
const FloatingVersion = "latest"

// FloatingHandle returns the handle aliasing whichever build satisfies "latest".
func FloatingHandle(name, deep string) string {
	return Handle(name, deep, FloatingVersion)
}
