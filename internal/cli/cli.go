// Package cli implements the snackager command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/snackager/pkg/buildinfo"
	"github.com/matzehuels/snackager/pkg/bundler"
	"github.com/matzehuels/snackager/pkg/cache"
	"github.com/matzehuels/snackager/pkg/coordinator"
	"github.com/matzehuels/snackager/pkg/externals"
	"github.com/matzehuels/snackager/pkg/integrations/npm"
	"github.com/matzehuels/snackager/pkg/request"
	"github.com/matzehuels/snackager/pkg/status"
	"github.com/matzehuels/snackager/pkg/storage"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "snackager"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger     *log.Logger
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Snackager bundles npm packages for the session runtime",
		Long:          `Snackager resolves npm packages, bundles them once per platform with host-provided modules left external, and serves the content-addressed result.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv(envPrefix+"CONFIG"), "path to a TOML config file")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.bundleCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() (Config, error) {
	return LoadConfig(c.configPath)
}

// =============================================================================
// Service Wiring
// =============================================================================

// services are the components behind one coordinator.
type services struct {
	parser      *request.Parser
	coordinator *coordinator.Coordinator
}

// backends are the shared state stores a coordinator runs against.
type backends struct {
	status   status.Store
	metadata cache.Cache
	latest   cache.Cache
	storage  storage.Store
}

// newServices wires a coordinator from cfg over the given backends.
func (c *CLI) newServices(cfg Config, b backends) (*services, error) {
	policy, err := loadPolicy(cfg.ExternalsFile)
	if err != nil {
		return nil, err
	}
	epochs, err := cfg.Epochs()
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("externals policy", "version", policy.Version(), "externals", len(policy.Names()))

	registry := npm.NewClient(b.metadata, cfg.MetadataTTL.Duration,
		npm.WithBaseURL(cfg.RegistryURL),
		npm.WithLogger(c.Logger))

	builder := bundler.New(registry, policy,
		bundler.WithInstaller(&bundler.NpmInstaller{Command: cfg.Build.InstallCommand}),
		bundler.WithLogger(c.Logger),
		bundler.WithWorkDir(cfg.Build.WorkDir),
		bundler.WithMaxAttempts(cfg.Build.MaxAttempts))

	coord := coordinator.New(coordinator.Config{
		Fetcher:     registry,
		Policy:      policy,
		Builder:     builder,
		Status:      b.status,
		Storage:     b.storage,
		Latest:      b.latest,
		Epochs:      epochs,
		Logger:      c.Logger,
		Debug:       cfg.Debug,
		PendingTTL:  cfg.Build.PendingTTL.Duration,
		ErrorTTL:    cfg.Build.ErrorTTL.Duration,
		RenewLeases: cfg.Build.RenewLeases,
	})
	return &services{parser: request.NewParser(policy), coordinator: coord}, nil
}

func loadPolicy(path string) (*externals.Policy, error) {
	if path == "" {
		return externals.Default(), nil
	}
	return externals.LoadFile(path)
}

// newStorage opens the artifact backend of sc. defaultDir is used by the
// file backend when sc.Dir is empty.
func newStorage(ctx context.Context, sc StorageConfig, defaultDir string) (storage.Store, error) {
	switch sc.Backend {
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    sc.Bucket,
			Prefix:    sc.Prefix,
			Region:    sc.Region,
			Endpoint:  sc.Endpoint,
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
		})
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		dir := sc.Dir
		if dir == "" {
			dir = defaultDir
		}
		return storage.NewFileStore(dir)
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/snackager/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// metadataCacheDir holds cached registry responses of local runs.
func metadataCacheDir() (string, error) {
	dir, err := cacheDir()
	if err != nil {
		return "", fmt.Errorf("get cache dir: %w", err)
	}
	return filepath.Join(dir, "registry"), nil
}
