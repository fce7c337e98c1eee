package bundler

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is the private working directory of one build.
type Workspace struct {
	Dir        string // Unique directory under the work root
	PackageDir string // Extracted package sources; dependencies install here
}

// NewWorkspace creates a uniquely named directory under root.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, "build-"+uuid.NewString())
	pkg := filepath.Join(dir, "package")
	if err := os.MkdirAll(pkg, 0o755); err != nil {
		return nil, err
	}
	return &Workspace{Dir: dir, PackageDir: pkg}, nil
}

// Cleanup removes the workspace and everything in it.
func (w *Workspace) Cleanup() error {
	return os.RemoveAll(w.Dir)
}
