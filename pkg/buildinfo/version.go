// Package buildinfo holds version information injected at link time:
//
//	go build -ldflags "-X github.com/matzehuels/snackager/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/snackager/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/snackager/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

var (
	Version = "dev"     // Semantic version, e.g. "v1.2.3"
	Commit  = "none"    // Git commit SHA
	Date    = "unknown" // Build timestamp
)

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the cobra version template.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s (commit %s, built %s)\n", Version, Commit, Date)
}
