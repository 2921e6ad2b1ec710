package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/feeledger/pkg/config"
	"github.com/angelmondragon/feeledger/pkg/db"
	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

// MaybeRunDev brings the schema up to date at startup when running in dev with
// BILLING_AUTO_MIGRATE set. Postgres gets the embedded goose migrations; a
// SQLite dev database is shaped by GORM from the models instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(cfg.DB.Driver), db.DriverSQLite) {
		logg.Info(ctx, "auto-migrating sqlite schema from models")
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sqlite automigrate: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql pool: %w", err)
	}
	runner, err := NewRunner(sqlDB, Migrations(), logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "applying migrations (dev auto-run)")
	return runner.Up(ctx)
}
