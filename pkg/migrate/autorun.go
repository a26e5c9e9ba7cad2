package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/db"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. SQLite databases are always brought up to date because
// they cannot run the Postgres migrations.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client.IsSQLite() {
		ctx = logg.WithField(ctx, "dialect", "sqlite")
		logg.Info(ctx, "auto-migrating sqlite schema")
		return AutoMigrateSQLite(ctx, client)
	}

	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// AutoMigrateSQLite creates the ledger tables from the GORM models.
func AutoMigrateSQLite(ctx context.Context, client *db.Client) error {
	if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrating sqlite: %w", err)
	}
	return nil
}
