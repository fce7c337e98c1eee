package cache

import (
	"fmt"
	"regexp"
	"strconv"
)

// PackageEpoch bumps the cache prefix for every package whose name matches
// Pattern.
type PackageEpoch struct {
	Pattern *regexp.Regexp
	Epoch   int
}

// Epochs computes cache prefixes. Bumping Global invalidates every artifact;
// a package epoch invalidates only the matching class of packages.
type Epochs struct {
	Global   int
	Packages []PackageEpoch
}

// NewPackageEpoch compiles pattern into a PackageEpoch.
func NewPackageEpoch(pattern string, epoch int) (PackageEpoch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return PackageEpoch{}, fmt.Errorf("cache epoch pattern %q: %w", pattern, err)
	}
	return PackageEpoch{Pattern: re, Epoch: epoch}, nil
}

// Prefix returns "<global>" or "<global>-<package>" when a package pattern
// matches name. The first matching pattern wins.
func (e Epochs) Prefix(name string) string {
	global := strconv.Itoa(e.Global)
	for _, p := range e.Packages {
		if p.Pattern != nil && p.Pattern.MatchString(name) {
			return global + "-" + strconv.Itoa(p.Epoch)
		}
	}
	return global
}

// Keyer builds status-store keys under one cache prefix.
type Keyer struct {
	prefix string
}

// NewKeyer returns a Keyer for prefix.
func NewKeyer(prefix string) Keyer {
	return Keyer{prefix: prefix}
}

// Prefix returns the cache prefix.
func (k Keyer) Prefix() string { return k.prefix }

// BuildStatus returns the status key for a qualified name at a version,
// built for the comma-joined platform list.
func (k Keyer) BuildStatus(qualifiedName, version, platforms string) string {
	return "buildStatus/" + k.prefix + "/" + qualifiedName + "@" + version + "-" + platforms
}

// LatestVersion returns the key recording which version the floating
// handle of qualifiedName currently redirects to.
func (k Keyer) LatestVersion(qualifiedName string) string {
	return "latestVersion/" + k.prefix + "/" + qualifiedName
}

// Artifact returns the storage path of file within the artifact namespace
// of handle for platform.
func (k Keyer) Artifact(handle, platform, file string) string {
	return k.prefix + "/" + handle + "-" + platform + "/" + file
}

// RegistryMetadata returns the metadata cache key for a registry id such as
// "lodash" or "@scope/pkg". It is not prefixed: metadata does not depend on
// how artifacts are built.
func RegistryMetadata(id string) string {
	return "registryMetadata/" + id
}
