package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// OnStartup brings the ledger schema up to date when the API boots, if
// autoMigrateEnabled allows it. Production databases are migrated with
// cmd/migrate instead.
func OnStartup(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || !autoMigrateEnabled(cfg) {
		return nil
	}
	if err := ValidateEmbedded(); err != nil {
		return err
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}

	ctx = logg.WithField(ctx, "driver", cfg.DB.Driver)
	if err := RunEmbedded(ctx, sqlDB, cfg.DB.Driver, "up"); err != nil {
		return fmt.Errorf("apply ledger migrations: %w", err)
	}
	logg.Info(ctx, "migrate.startup_applied")
	return nil
}

// autoMigrateEnabled is true for SQLite, which always starts empty, and for
// dev environments that opt in with STOREFRONT_AUTO_MIGRATE.
func autoMigrateEnabled(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.FeatureFlags.UseSQLite || (cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate)
}
