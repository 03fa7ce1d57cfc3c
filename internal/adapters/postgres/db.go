package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultJobLease is how long a running bake job may go without finishing
// before another worker reclaims it.
const DefaultJobLease = 10 * time.Minute

type DB struct {
	Pool *pgxpool.Pool
	// JobLease overrides DefaultJobLease when positive.
	JobLease time.Duration
}

func (db *DB) lease() time.Duration {
	if db.JobLease > 0 {
		return db.JobLease
	}
	return DefaultJobLease
}

func Connect(ctx context.Context, url string, maxConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	cfg.MaxConns = maxConns
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() { db.Pool.Close() }

// Ping reports whether the database answers.
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }
