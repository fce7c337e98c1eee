package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/snackager/internal/server"
	"github.com/matzehuels/snackager/pkg/cache"
	"github.com/matzehuels/snackager/pkg/status"
)

// serveCommand creates the HTTP service command.
func (c *CLI) serveCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bundle endpoint",
		Long: `Serve GET /bundle/<package>[@tag]?platforms=ios,android,web.

Build status, leases and registry metadata live in Redis so any number of
instances can serve the same artifacts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			return c.serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	return cmd
}

func (c *CLI) serve(ctx context.Context, cfg Config) error {
	rdb, err := cache.DialRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()

	store, err := newStorage(ctx, cfg.Storage, "artifacts")
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	shared := cache.NewRedisCache(rdb)
	svc, err := c.newServices(cfg, backends{
		status:   status.NewRedisStore(rdb),
		metadata: shared,
		latest:   shared,
		storage:  store,
	})
	if err != nil {
		return err
	}

	m := newMetrics(c.Logger)
	m.install()

	srv := server.New(server.Config{
		Bundler:  svc.coordinator,
		Parser:   svc.parser,
		Logger:   c.Logger,
		Health:   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		Gatherer: m.registry,
	})
	c.Logger.Info("starting", "storage", cfg.Storage.Backend, "epoch", cfg.Cache.Epoch, "debug", cfg.Debug)
	return srv.ListenAndServe(ctx, cfg.Listen)
}
