// Package store is the relational persistence layer: locations, events,
// admins, system settings, and the queue's jobs table, all on one pgx pool.
// Each repository is a thin interface over SQL; callers never see the
// driver.
package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Store owns the connection pool and hands out repositories.
type Store struct {
	pool *pgxpool.Pool

	Locations *LocationRepo
	Events    *EventRepo
	Admins    *AdminRepo
	Settings  *SettingsRepo
}

// Open connects to the database and prepares the repositories. The caller
// owns the returned Store and must Close it.
func Open(ctx context.Context, dbURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database URL")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	s := &Store{pool: pool}
	s.Locations = &LocationRepo{pool: pool}
	s.Events = &EventRepo{pool: pool}
	s.Admins = &AdminRepo{pool: pool}
	s.Settings = &SettingsRepo{pool: pool}
	return s, nil
}

// Pool exposes the underlying pool for the queue, which shares the backing
// database but owns its own table.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// EnsureSchema creates all tables and indices if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return errors.Wrap(err, "ensure schema")
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
