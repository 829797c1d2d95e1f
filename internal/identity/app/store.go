package app

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/identity/internal/identity/store/drivers/postgres"
	"github.com/aussiebroadwan/identity/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/identity/internal/identity/store/sqlstore"
)

// OpenStore opens the configured database. Migrations are not applied.
func OpenStore(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	switch cfg.DatabaseDriver {
	case DriverSQLite:
		return sqlite.NewStore(cfg.DatabaseURL)
	case DriverPostgres:
		return postgres.NewStore(ctx, cfg.DatabaseURL, postgres.Options{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}
