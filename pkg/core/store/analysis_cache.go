package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnalysisEntry is one cached LLM analysis for a company and fiscal year.
type AnalysisEntry struct {
	CIK         string          `json:"cik"`
	CompanyName string          `json:"company_name"`
	FiscalYear  int             `json:"fiscal_year"`
	Provider    string          `json:"provider"`
	Markdown    string          `json:"markdown"`
	Verdict     json.RawMessage `json:"verdict,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// AnalysisCache keeps LLM output so repeat report requests skip the provider.
// Same hybrid layout as CompanyCache: DB when a pool is set, else one file per key.
type AnalysisCache struct {
	pool    *pgxpool.Pool
	fileDir string
	maxAge  time.Duration
}

// NewAnalysisCache creates an analysis cache. Entries older than maxAge are
// treated as misses; maxAge <= 0 keeps them forever.
func NewAnalysisCache(pool *pgxpool.Pool, dir string, maxAge time.Duration) *AnalysisCache {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "lookup")
	}
	if dir != "" {
		dir = filepath.Join(dir, "analyses")
	}
	return &AnalysisCache{pool: pool, fileDir: dir, maxAge: maxAge}
}

// Get returns the cached entry, or nil on a miss.
func (c *AnalysisCache) Get(ctx context.Context, cik string, fiscalYear int, provider string) (*AnalysisEntry, error) {
	var entry *AnalysisEntry
	var err error

	if c.pool != nil {
		entry, err = c.getFromDB(ctx, cik, fiscalYear, provider)
	} else if c.fileDir != "" {
		entry, err = c.getFromFile(cik, fiscalYear, provider)
	}
	if err != nil || entry == nil {
		return nil, err
	}

	if c.maxAge > 0 && time.Since(entry.GeneratedAt) > c.maxAge {
		return nil, nil
	}
	return entry, nil
}

func (c *AnalysisCache) getFromDB(ctx context.Context, cik string, fiscalYear int, provider string) (*AnalysisEntry, error) {
	query := `SELECT entry_json FROM analyses WHERE cik = $1 AND fiscal_year = $2 AND provider = $3`

	var data []byte
	err := c.pool.QueryRow(ctx, query, cik, fiscalYear, provider).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}

	var entry AnalysisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis data: %w", err)
	}
	return &entry, nil
}

func (c *AnalysisCache) getFromFile(cik string, fiscalYear int, provider string) (*AnalysisEntry, error) {
	data, err := os.ReadFile(c.path(cik, fiscalYear, provider))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis cache: %w", err)
	}

	var entry AnalysisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt file is a miss; the next Put overwrites it.
		return nil, nil
	}
	return &entry, nil
}

// Put stores an entry, stamping GeneratedAt when unset.
func (c *AnalysisCache) Put(ctx context.Context, entry *AnalysisEntry) error {
	if entry.GeneratedAt.IsZero() {
		entry.GeneratedAt = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	if c.pool != nil {
		query := `
			INSERT INTO analyses (cik, fiscal_year, provider, entry_json, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (cik, fiscal_year, provider)
			DO UPDATE SET
				entry_json = EXCLUDED.entry_json,
				updated_at = EXCLUDED.updated_at;
		`
		if _, err := c.pool.Exec(ctx, query, entry.CIK, entry.FiscalYear, entry.Provider, data, entry.GeneratedAt); err != nil {
			return fmt.Errorf("failed to save analysis: %w", err)
		}
		return nil
	}

	if c.fileDir != "" {
		if err := os.MkdirAll(c.fileDir, 0755); err != nil {
			return fmt.Errorf("failed to create cache dir: %w", err)
		}
		if err := os.WriteFile(c.path(entry.CIK, entry.FiscalYear, entry.Provider), data, 0644); err != nil {
			return fmt.Errorf("failed to save to file cache: %w", err)
		}
	}
	return nil
}

func (c *AnalysisCache) path(cik string, fiscalYear int, provider string) string {
	return filepath.Join(c.fileDir, fmt.Sprintf("%s_%d_%s.json", cik, fiscalYear, provider))
}
