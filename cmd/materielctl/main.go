// Command materielctl runs operator tasks against the materiel database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/materiel-backend/internal/access"
	"github.com/angelmondragon/materiel-backend/pkg/config"
	"github.com/angelmondragon/materiel-backend/pkg/db"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
	"github.com/angelmondragon/materiel-backend/pkg/redis"
)

// deps is swapped out in tests. openCache may be nil or return a nil store
// when no Redis is configured.
type deps struct {
	logg       *logger.Logger
	loadConfig func() (*config.Config, error)
	openDB     func(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*db.Client, error)
	openCache  func(ctx context.Context, cfg *config.Config, logg *logger.Logger) (access.CacheStore, func() error, error)
}

func defaultDeps() deps {
	return deps{
		logg:       logger.New(logger.Options{ServiceName: "materielctl"}),
		loadConfig: config.Load,
		openDB: func(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*db.Client, error) {
			return db.New(ctx, cfg.DB, logg)
		},
		openCache: func(ctx context.Context, cfg *config.Config, logg *logger.Logger) (access.CacheStore, func() error, error) {
			if cfg.Redis.URL == "" && cfg.Redis.Address == "" {
				return nil, nil, nil
			}
			client, err := redis.New(ctx, cfg.Redis, logg)
			if err != nil {
				return nil, nil, err
			}
			return client, client.Close, nil
		},
	}
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "materielctl",
		Short:         "Operator tooling for the materiel service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newLogsCmd(d),
		newTokenCmd(d),
		newAccessCmd(d),
	)
	return root
}

// withDB loads config, opens the database and hands both to fn.
func (d deps) withDB(ctx context.Context, fn func(cfg *config.Config, client *db.Client) error) error {
	cfg, err := d.loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	client, err := d.openDB(ctx, cfg, d.logg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer client.Close()
	return fn(cfg, client)
}

// forgetAccess drops the cached access answer for userID so a grant or
// revoke is seen before the cache TTL runs out. A missing or unreachable
// Redis is reported and skipped.
func (d deps) forgetAccess(ctx context.Context, cfg *config.Config, userID int64) {
	if d.openCache == nil || cfg.Access.CacheTTL <= 0 {
		return
	}
	ctx = d.logg.WithUserID(ctx, userID)
	store, closeFn, err := d.openCache(ctx, cfg, d.logg)
	if err != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "materiel.access.cache_unreachable")
		return
	}
	if store == nil {
		return
	}
	if closeFn != nil {
		defer closeFn()
	}
	if err := access.NewCachedPolicy(nil, store, cfg.Access.CacheTTL, d.logg).Invalidate(ctx, userID); err != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "materiel.access.cache_invalidate_failed")
	}
}
