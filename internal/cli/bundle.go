package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/snackager/pkg/cache"
	"github.com/matzehuels/snackager/pkg/coordinator"
	"github.com/matzehuels/snackager/pkg/errors"
	"github.com/matzehuels/snackager/pkg/status"
)

type bundleOptions struct {
	outDir  string
	rebuild bool
	refresh bool
}

// bundleCommand creates the local, single-request bundle command.
func (c *CLI) bundleCommand() *cobra.Command {
	var opts bundleOptions

	cmd := &cobra.Command{
		Use:   "bundle <package>[@tag][?platforms=...]",
		Short: "Bundle one package locally",
		Long: `Bundle one package end-to-end without Redis: build status is kept in
memory and artifacts are written to a local directory.`,
		Example: `  snackager bundle lodash
  snackager bundle '@expo/vector-icons@^14.0.0?platforms=ios,android'
  snackager bundle react-native-svg/lib/Path --out ./dist`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return c.bundle(cmd.Context(), newPrinter(cmd.OutOrStdout()), cfg, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "artifact directory (default: <cache dir>/artifacts)")
	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "rebuild platforms even if artifacts exist")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass the registry metadata cache")
	return cmd
}

func (c *CLI) bundle(ctx context.Context, out printer, cfg Config, spec string, opts bundleOptions) error {
	dir, err := cacheDir()
	if err != nil {
		return fmt.Errorf("get cache dir: %w", err)
	}
	metaDir, err := metadataCacheDir()
	if err != nil {
		return err
	}
	metadata, err := cache.NewFileCache(metaDir)
	if err != nil {
		return err
	}

	storageCfg := StorageConfig{Backend: "file", Dir: opts.outDir}
	artifactDir := opts.outDir
	if artifactDir == "" {
		artifactDir = filepath.Join(dir, "artifacts")
	}
	store, err := newStorage(ctx, storageCfg, artifactDir)
	if err != nil {
		return err
	}

	svc, err := c.newServices(cfg, backends{
		status:   status.NewMemoryStore(),
		metadata: metadata,
		latest:   metadata,
		storage:  store,
	})
	if err != nil {
		return err
	}

	req, err := svc.parser.Parse(spec)
	if err != nil {
		return err
	}
	req.Rebuild = opts.rebuild
	req.BypassCache = opts.refresh

	spin := newSpinner(ctx, os.Stderr, "Bundling "+req.String())
	spin.Start()
	resp, err := svc.coordinator.Bundle(ctx, req)
	spin.Stop()
	if err != nil {
		out.fail("%s", errors.UserMessage(err))
		return err
	}

	if resp.Pending {
		out.warn("%s@%s is being built by another process", resp.Name, resp.Version)
		return nil
	}
	out.ok("Bundled %s", styleAccent.Render(resp.Name+"@"+resp.Version))
	out.field("handle", resp.Handle)
	printDependencies(out, resp)

	epochs, err := cfg.Epochs()
	if err != nil {
		return err
	}
	keyer := cache.NewKeyer(epochs.Prefix(req.Name()))
	for _, p := range req.Platforms {
		out.path(filepath.Join(artifactDir, filepath.FromSlash(keyer.Artifact(resp.Hash, string(p), ""))))
	}
	return nil
}

func printDependencies(out printer, resp *coordinator.Response) {
	if len(resp.Dependencies) == 0 {
		out.field("peers", styleMuted.Render("none"))
		return
	}
	names := resp.Dependencies.Names()
	slices.Sort(names)
	for i, name := range names {
		spec := "(host provided)"
		if v := resp.Dependencies[name]; v != nil {
			spec = *v
		}
		label := ""
		if i == 0 {
			label = "peers"
		}
		out.field(label, name+" "+styleMuted.Render(spec))
	}
}
