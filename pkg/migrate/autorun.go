package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/materiel-backend/pkg/config"
	"github.com/angelmondragon/materiel-backend/pkg/db"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date at API startup. sqlite is always
// auto-migrated. Postgres is migrated only in dev with MATERIEL_AUTO_MIGRATE
// set; other environments run cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	ctx = logg.WithField(ctx, "driver", client.Driver())

	if client.Driver() == config.DriverSQLite {
		logg.Info(ctx, "migrate.automigrate")
		return AutoMigrateModels(ctx, client.DB())
	}
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	runner, err := NewRunner(sqlDB, DefaultDir)
	if err != nil {
		return err
	}
	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "migrate.goose.up")
	return nil
}
