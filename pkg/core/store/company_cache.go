package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"financial_lookup/pkg/core/ingest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CompaniesFile is the flat lookup file written under the cache directory.
const CompaniesFile = "companies.json"

// ErrNotCached is returned by Load when nothing has been saved yet.
var ErrNotCached = errors.New("company cache is empty")

// CompanyCache stores the SEC company directory for search.
// Supports Hybrid Vault: DB (Primary) + File System (Fallback/Local)
type CompanyCache struct {
	pool    *pgxpool.Pool
	fileDir string
}

// NewCompanyCache creates a company cache. If pool is nil, the cache lives in
// dir/companies.json; if dir is also empty it defaults to .cache/lookup.
func NewCompanyCache(pool *pgxpool.Pool, dir string) *CompanyCache {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "lookup")
	}
	return &CompanyCache{pool: pool, fileDir: dir}
}

// Path returns the file location, or "" when only the database is used.
func (c *CompanyCache) Path() string {
	if c.fileDir == "" {
		return ""
	}
	return filepath.Join(c.fileDir, CompaniesFile)
}

// Load returns the cached directory in its saved order.
func (c *CompanyCache) Load(ctx context.Context) ([]ingest.Company, error) {
	// 1. Try DB
	if c.pool != nil {
		companies, err := c.loadFromDB(ctx)
		if err != nil {
			return nil, err
		}
		if len(companies) > 0 {
			return companies, nil
		}
		// Empty table: fall through to the file so a fresh database still works.
	}

	// 2. Try File System
	if c.fileDir != "" {
		return c.loadFromFile()
	}
	return nil, ErrNotCached
}

func (c *CompanyCache) loadFromDB(ctx context.Context) ([]ingest.Company, error) {
	rows, err := c.pool.Query(ctx, `SELECT cik, ticker, name FROM companies ORDER BY rank`)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}

	companies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ingest.Company, error) {
		var co ingest.Company
		err := row.Scan(&co.CIK, &co.Ticker, &co.Name)
		return co, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan companies: %w", err)
	}
	return companies, nil
}

func (c *CompanyCache) loadFromFile() ([]ingest.Company, error) {
	data, err := os.ReadFile(c.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read company cache: %w", err)
	}

	var companies []ingest.Company
	if err := json.Unmarshal(data, &companies); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", c.Path(), err)
	}
	return companies, nil
}

// Save replaces the cached directory.
func (c *CompanyCache) Save(ctx context.Context, companies []ingest.Company) error {
	// 1. Save to DB
	if c.pool != nil {
		if err := c.saveToDB(ctx, companies); err != nil {
			return err
		}
	}

	// 2. Save to File (Always if configured)
	if c.fileDir != "" {
		if err := os.MkdirAll(c.fileDir, 0755); err != nil {
			return fmt.Errorf("failed to create cache dir: %w", err)
		}
		data, err := json.MarshalIndent(companies, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal companies: %w", err)
		}
		if err := os.WriteFile(c.Path(), data, 0644); err != nil {
			return fmt.Errorf("failed to save to file cache: %w", err)
		}
	}
	return nil
}

func (c *CompanyCache) saveToDB(ctx context.Context, companies []ingest.Company) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM companies`); err != nil {
		return fmt.Errorf("failed to clear companies: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"companies"},
		[]string{"rank", "cik", "ticker", "name"},
		pgx.CopyFromSlice(len(companies), func(i int) ([]any, error) {
			co := companies[i]
			return []any{i, co.CIK, co.Ticker, co.Name}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy companies: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit companies: %w", err)
	}
	return nil
}
