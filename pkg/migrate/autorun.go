package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/expiry-tracker/pkg/config"
	"github.com/angelmondragon/expiry-tracker/pkg/db"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
	"gorm.io/gorm"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. Postgres runs the goose files; sqlite builds the schema
// from the gorm models since the SQL files use Postgres types.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	meta := map[string]any{"env": cfg.App.Env, "source": "embedded", "driver": cfg.DB.Driver}
	ctx = logg.WithFields(ctx, meta)

	if cfg.DB.Driver == config.DriverSQLite {
		logg.Info(ctx, "building sqlite schema from models (dev auto-run)")
		if err := AutoMigrateModels(client.DB()); err != nil {
			return err
		}
		logg.Info(ctx, "sqlite schema ready")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "applying embedded migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, "", CommandUp, nil); err != nil {
		return err
	}
	logg.Info(ctx, "migrations applied")
	return nil
}

// AutoMigrateModels creates the users, items and notifications tables from the gorm
// models. Tests use it against in-memory sqlite.
func AutoMigrateModels(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&models.User{}, &models.Item{}, &models.Notification{}); err != nil {
		return fmt.Errorf("auto migrate models: %w", err)
	}
	return nil
}
