package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"derbent-workflow/backend/internal/config"
)

// Open connects to the database selected by cfg.DB.Driver, applies the
// schema and returns the store along with a function that releases it.
func Open(ctx context.Context, cfg *config.Config) (*Store, func(), error) {
	var (
		store   *Store
		release func()
	)
	switch cfg.DB.Driver {
	case "postgres":
		poolConfig, err := pgxpool.ParseConfig(cfg.PostgresDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse database config: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store = NewPostgresStore(pool)
		release = func() {
			_ = store.Close()
			pool.Close()
		}
	case "sqlite":
		s, err := OpenSQLite(cfg.DB.Path)
		if err != nil {
			return nil, nil, err
		}
		store = s
		release = func() { _ = store.Close() }
	default:
		return nil, nil, fmt.Errorf("unsupported db driver %q", cfg.DB.Driver)
	}

	if err := store.Migrate(ctx); err != nil {
		release()
		return nil, nil, err
	}
	return store, release, nil
}
