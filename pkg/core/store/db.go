package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied by EnsureSchema. Both caches work without it when no pool
// is configured.
const schema = `
CREATE TABLE IF NOT EXISTS companies (
	rank   INTEGER PRIMARY KEY,
	cik    TEXT NOT NULL,
	ticker TEXT NOT NULL,
	name   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS companies_cik_idx ON companies (cik);

CREATE TABLE IF NOT EXISTS analyses (
	cik          TEXT NOT NULL,
	fiscal_year  INTEGER NOT NULL,
	provider     TEXT NOT NULL,
	entry_json   JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (cik, fiscal_year, provider)
);
`

// NewPool opens a connection pool for dbURL and verifies it with a ping.
func NewPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database URL not set")
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the cache tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
