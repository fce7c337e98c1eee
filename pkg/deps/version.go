package deps

import (
	"slices"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/snackager/pkg/errors"
)

// ResolveVersion pins tag to an exact version of meta. isLatest reports
// whether the result equals the "latest" dist-tag.
func ResolveVersion(meta *PackageMetadata, tag string) (version string, isLatest bool, err error) {
	version, ok := matchVersion(meta, tag)
	if !ok {
		return "", false, errors.New(errors.ErrCodeVersionNotFound,
			"no version of %s matches %q", meta.Name, tag)
	}
	if _, err := semver.StrictNewVersion(version); err != nil {
		return "", false, errors.New(errors.ErrCodeInvalidVersion,
			"%s resolved %q to invalid version %q", meta.Name, tag, version)
	}
	latest := meta.Latest()
	return version, latest != "" && version == latest, nil
}

func matchVersion(meta *PackageMetadata, tag string) (string, bool) {
	if _, ok := meta.Versions[tag]; ok {
		return tag, true
	}
	if v, ok := meta.DistTags[tag]; ok {
		return v, true
	}
	if v, ok := maxSatisfying(meta.Versions, tag); ok {
		return v, true
	}
	if tag == "*" {
		if latest := meta.Latest(); latest != "" {
			return latest, true
		}
	}
	return "", false
}

func maxSatisfying(versions map[string]*PackageVersion, rng string) (string, bool) {
	c, err := semver.NewConstraint(rng)
	if err != nil {
		return "", false
	}
	parsed := make([]*semver.Version, 0, len(versions))
	raw := make(map[*semver.Version]string, len(versions))
	for v := range versions {
		sv, err := semver.StrictNewVersion(v)
		if err != nil {
			continue
		}
		parsed = append(parsed, sv)
		raw[sv] = v
	}
	slices.SortFunc(parsed, func(a, b *semver.Version) int { return b.Compare(a) })
	for _, sv := range parsed {
		if c.Check(sv) {
			return raw[sv], true
		}
	}
	return "", false
}
