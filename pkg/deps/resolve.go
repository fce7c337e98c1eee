package deps

import (
	"github.com/matzehuels/snackager/pkg/errors"
	"github.com/matzehuels/snackager/pkg/externals"
)

// Resolution is the pinned, installable description of a bundle request.
type Resolution struct {
	Name         string          // Registry name, e.g. "@scope/pkg"
	Deep         string          // Subpath within the package
	Version      string          // Exact published version
	IsLatest     bool            // Version equals the "latest" dist-tag
	Package      *PackageVersion // Manifest of Version
	Dependencies DependencySet   // Host-declared dependency set

	Handle         string // Content address of (Name, Deep, Version)
	FloatingHandle string // Set only when IsLatest
}

// Resolve pins tag against meta and computes the dependency set and handles.
func Resolve(meta *PackageMetadata, deep, tag string, policy *externals.Policy) (*Resolution, error) {
	version, isLatest, err := ResolveVersion(meta, tag)
	if err != nil {
		return nil, err
	}
	pv, ok := meta.Versions[version]
	if !ok || pv == nil {
		return nil, errors.New(errors.ErrCodeVersionNotFound,
			"%s@%s is tagged but not published", meta.Name, version)
	}

	res := &Resolution{
		Name:         meta.Name,
		Deep:         deep,
		Version:      version,
		IsLatest:     isLatest,
		Package:      pv,
		Dependencies: ResolveDependencies(pv, policy),
		Handle:       Handle(meta.Name, deep, version),
	}
	if isLatest {
		res.FloatingHandle = FloatingHandle(meta.Name, deep)
	}
	return res, nil
}

// QualifiedName returns the name including the deep import path.
func (r *Resolution) QualifiedName() string {
	if r.Deep != "" {
		return r.Name + "/" + r.Deep
	}
	return r.Name
}
