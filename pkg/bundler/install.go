package bundler

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/matzehuels/snackager/pkg/errors"
)

// Installer installs the dependencies declared by dir/package.json into
// dir/node_modules.
type Installer interface {
	Install(ctx context.Context, dir string) error
}

// DefaultInstallCommand installs without running package scripts and
// without touching lockfiles or the audit service.
var DefaultInstallCommand = []string{
	"npm", "install",
	"--ignore-scripts",
	"--no-audit",
	"--no-fund",
	"--legacy-peer-deps",
	"--no-package-lock",
}

// NpmInstaller runs an npm-compatible install command.
type NpmInstaller struct {
	Command  []string // Defaults to DefaultInstallCommand
	CacheDir string   // Shared package cache; defaults to a directory inside the build
}

// Install runs the install command in dir with a minimized environment:
// only PATH, HOME (set to dir) and the package cache location are passed,
// so no ambient credentials reach install-time code.
func (n *NpmInstaller) Install(ctx context.Context, dir string) error {
	command := n.Command
	if len(command) == 0 {
		command = DefaultInstallCommand
	}
	cacheDir := n.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(dir, ".npm-cache")
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + dir,
		"npm_config_cache=" + cacheDir,
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return errors.Wrap(errors.ErrCodeBuildFailed, err, "dependency install failed: %s", tail(out.String(), 2000))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}

var _ Installer = (*NpmInstaller)(nil)
