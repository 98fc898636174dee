// Package app wires the configured clients, caches and analyst together for
// the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"financial_lookup/pkg/core/analyst"
	"financial_lookup/pkg/core/config"
	"financial_lookup/pkg/core/financial"
	"financial_lookup/pkg/core/ingest"
	"financial_lookup/pkg/core/llm"
	"financial_lookup/pkg/core/market"
	"financial_lookup/pkg/core/news"
	"financial_lookup/pkg/core/prompt"
	"financial_lookup/pkg/core/search"
	"financial_lookup/pkg/core/store"
	"financial_lookup/pkg/core/validate"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds one instance of every configured dependency. Optional parts
// (Analyst, and the market and news clients without keys) are nil or
// disabled rather than failing construction.
type App struct {
	Config    *config.Config
	Catalogue *financial.Catalogue
	EDGAR     *ingest.EDGARClient
	Market    *market.Client
	News      *news.Client
	Analyst   *analyst.Analyst
	Companies *store.CompanyCache
	Analyses  *store.AnalysisCache

	pool *pgxpool.Pool
}

// New builds an App from cfg. A configured database must be reachable.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	cat, err := cfg.Catalogue()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Catalogue: cat,
		EDGAR: ingest.NewEDGARClient(ingest.EDGARConfig{
			DataURL:   cfg.SEC.DataURL,
			FilesURL:  cfg.SEC.FilesURL,
			UserAgent: cfg.SEC.UserAgent,
			Timeout:   cfg.SEC.Timeout,
			RateLimit: cfg.SEC.RateLimit,
		}),
		Market: market.NewClient(market.Config{
			BaseURL:  cfg.Market.BaseURL,
			APIKey:   cfg.Market.APIKey,
			Timeout:  cfg.Market.Timeout,
			MinDelay: cfg.Market.MinDelay,
			CacheTTL: cfg.Market.CacheTTL,
		}),
		News: news.NewClient(news.Config{
			BaseURL:  cfg.News.BaseURL,
			APIKey:   cfg.News.APIKey,
			Timeout:  cfg.News.Timeout,
			CacheTTL: cfg.News.CacheTTL,
		}),
	}

	if cfg.Cache.DatabaseURL != "" {
		pool, err := store.NewPool(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		a.pool = pool
		fmt.Println("[APP] Using Postgres for the lookup cache")
	}
	a.Companies = store.NewCompanyCache(a.pool, cfg.Cache.Dir)
	a.Analyses = store.NewAnalysisCache(a.pool, cfg.Cache.Dir, cfg.Cache.AnalysisTTL)

	if err := a.initAnalyst(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) initAnalyst() error {
	cfg := a.Config.LLM
	if cfg.APIKey == "" {
		fmt.Println("[APP] No LLM API key configured; AI analysis disabled")
		return nil
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return err
	}

	prompts := prompt.NewBuiltinRegistry()
	if cfg.PromptDir != "" {
		if err := prompts.LoadDir(cfg.PromptDir); err != nil {
			fmt.Printf("[WARNING] Failed to load prompt library: %v\n", err)
			fmt.Println("  Falling back to built-in prompts")
		}
	}

	a.Analyst = analyst.New(provider, prompts).WithCache(a.Analyses)
	fmt.Printf("[APP] AI analysis via %s\n", provider.Name())
	return nil
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// =============================================================================
// COMPANY DIRECTORY
// =============================================================================

// RefreshCompanies downloads the SEC ticker list and replaces the cache.
func (a *App) RefreshCompanies(ctx context.Context) ([]ingest.Company, error) {
	companies, err := a.EDGAR.FetchCompanyTickers(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.Companies.Save(ctx, companies); err != nil {
		return nil, err
	}
	log.Printf("[APP] Cached %d companies", len(companies))
	return companies, nil
}

// Directory loads the company directory, downloading it when fetchIfMissing
// is set and nothing is cached yet.
func (a *App) Directory(ctx context.Context, fetchIfMissing bool) (*search.Directory, error) {
	companies, err := a.Companies.Load(ctx)
	if errors.Is(err, store.ErrNotCached) && fetchIfMissing {
		log.Printf("[APP] Company cache empty, fetching from SEC")
		companies, err = a.RefreshCompanies(ctx)
	}
	if err != nil {
		return nil, err
	}
	return search.NewDirectory(companies), nil
}

// =============================================================================
// FINANCIALS
// =============================================================================

// Financials fetches the companyfacts document for cik and extracts year.
// year 0 uses the configured fiscal year.
func (a *App) Financials(ctx context.Context, cik string, year int) (*financial.Financials, error) {
	if year == 0 {
		year = a.Config.Report.FiscalYear
	}
	extractor, err := financial.NewExtractor(a.Catalogue, year)
	if err != nil {
		return nil, err
	}
	doc, err := a.EDGAR.FetchCompanyFacts(ctx, cik)
	if err != nil {
		return nil, err
	}
	return extractor.Process(doc)
}

// History extracts n consecutive fiscal years ending at year, newest first,
// from a single fetch. Years with nothing resolved are kept as empty results.
func (a *App) History(ctx context.Context, cik string, year, n int) ([]*financial.Financials, error) {
	if year == 0 {
		year = a.Config.Report.FiscalYear
	}
	if n < 1 {
		return nil, fmt.Errorf("history needs at least one year, got %d", n)
	}
	doc, err := a.EDGAR.FetchCompanyFacts(ctx, cik)
	if err != nil {
		return nil, err
	}

	out := make([]*financial.Financials, 0, n)
	for y := year; y > year-n; y-- {
		extractor, err := financial.NewExtractor(a.Catalogue, y)
		if err != nil {
			return nil, err
		}
		fin, err := extractor.Process(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, fin)
	}
	return out, nil
}

// Review compares year with the year before.
func (a *App) Review(ctx context.Context, cik string, year int) (*validate.Review, error) {
	history, err := a.History(ctx, cik, year, 2)
	if err != nil {
		return nil, err
	}
	return validate.NewReview(history[0], history[1]), nil
}
