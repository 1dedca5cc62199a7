package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/openbasket/storefront/pkg/config"
	"github.com/openbasket/storefront/pkg/db"
	"github.com/openbasket/storefront/pkg/logger"
)

// MaybeRun migrates the guest cart schema on boot when the feature flag is
// enabled. The on-device database has no operator to run migrations by hand,
// so unlike a hosted service this defaults to on.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if !strings.EqualFold(cfg.LocalStore.Driver, config.DriverSQLite) {
		// goose embeds target SQLite; postgres rigs migrate via GORM in cmd.
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running guest cart store migrations")

	if err := Up(ctx, sqlDB); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "guest cart store migrations completed")
	return nil
}
