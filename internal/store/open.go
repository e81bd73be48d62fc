package store

import (
	"context"
	"fmt"

	"github.com/mmuslimabdulj/goat-dm/internal/config"
)

// Open connects the driver selected by cfg.StoreDriver and wraps it with
// latency metrics.
func Open(ctx context.Context, cfg *config.Config) (DataStore, error) {
	var (
		ds  DataStore
		err error
	)

	switch cfg.StoreDriver {
	case config.DriverMemory, "":
		ds = NewMemoryStore()
	case config.DriverSQLite:
		ds, err = NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		ds, err = NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.DriverRedis:
		ds, err = NewRedisStore(ctx, cfg.RedisURL)
	case config.DriverBadger:
		ds, err = NewBadgerStore(cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.StoreDriver, err)
	}

	return WithMetrics(ds), nil
}
