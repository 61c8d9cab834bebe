package main

import (
	"context"
	"fmt"

	"spotwalk/internal/config"
	"spotwalk/internal/db"
	"spotwalk/internal/history"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	openSQLiteFn      = db.OpenSQLite
	connectPostgresFn = db.ConnectPostgres
)

// postgresStore closes the pool it was opened with.
type postgresStore struct {
	*history.PostgresStore
	pool *pgxpool.Pool
}

func (s postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (history.Store, error) {
	switch cfg.StoreDriver {
	case "", "sqlite":
		sqlDB, err := openSQLiteFn(cfg)
		if err != nil {
			return nil, err
		}
		store, err := history.NewSQLiteStore(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return store, nil
	case "postgres":
		pool, err := connectPostgresFn(cfg)
		if err != nil {
			return nil, err
		}
		store := history.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return postgresStore{PostgresStore: store, pool: pool}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
