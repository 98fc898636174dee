// Package ingest provides SEC EDGAR API integration for fetching company facts,
// submissions and the ticker directory.
// API Documentation: https://www.sec.gov/edgar/sec-api-documentation
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"financial_lookup/pkg/core/facts"

	"golang.org/x/time/rate"
)

const (
	// SEC EDGAR API paths
	CompanyFactsPath = "/api/xbrl/companyfacts/CIK%s.json"
	SubmissionsPath  = "/submissions/CIK%s.json"
	TickersPath      = "/files/company_tickers.json"

	DefaultDataURL   = "https://data.sec.gov"
	DefaultFilesURL  = "https://www.sec.gov"
	DefaultUserAgent = "FinancialLookup/1.0 (contact@example.com)"

	MaxRetries        = 5
	DefaultRetryDelay = 5 * time.Second
)

// ErrNotFound is returned when EDGAR answers 404 for a CIK.
var ErrNotFound = errors.New("not found on SEC EDGAR")

// ErrRateLimited is returned when EDGAR keeps answering 429 past MaxRetries.
var ErrRateLimited = errors.New("rate limited by SEC EDGAR")

// StatusError reports a non-200 EDGAR response other than 404.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("SEC API returned status %d for %s", e.StatusCode, e.URL)
}

// =============================================================================
// SEC EDGAR DATA TYPES
// =============================================================================

// CompanyInfo is the subset of the submissions response used for profiles.
type CompanyInfo struct {
	CIK            string   `json:"cik"`
	EntityType     string   `json:"entityType"`
	SIC            string   `json:"sic"`
	SICDescription string   `json:"sicDescription"`
	Name           string   `json:"name"`
	Tickers        []string `json:"tickers"`
	Exchanges      []string `json:"exchanges"`
	FiscalYearEnd  string   `json:"fiscalYearEnd"` // MMDD
}

// Company is one row of company_tickers.json, in the flat shape the lookup
// cache stores.
type Company struct {
	CIK    string `json:"cik"` // zero-padded to 10 digits
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// =============================================================================
// SEC EDGAR CLIENT
// =============================================================================

// EDGARConfig configures an EDGARClient. Zero values fall back to defaults.
type EDGARConfig struct {
	DataURL    string
	FilesURL   string
	UserAgent  string
	Timeout    time.Duration
	RateLimit  float64 // requests per second
	HTTPClient *http.Client
}

// EDGARClient handles SEC EDGAR API requests. All requests share one limiter,
// so a client can be used from several goroutines.
type EDGARClient struct {
	dataURL    string
	filesURL   string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryDelay time.Duration
}

// NewEDGARClient creates a new SEC EDGAR API client.
func NewEDGARClient(cfg EDGARConfig) *EDGARClient {
	if cfg.DataURL == "" {
		cfg.DataURL = DefaultDataURL
	}
	if cfg.FilesURL == "" {
		cfg.FilesURL = DefaultFilesURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		// SEC allows ~10 requests per second
		cfg.RateLimit = 8
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}

	return &EDGARClient{
		dataURL:    strings.TrimRight(cfg.DataURL, "/"),
		filesURL:   strings.TrimRight(cfg.FilesURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		retryDelay: DefaultRetryDelay,
	}
}

// UserAgent returns the User-Agent sent with every request.
func (c *EDGARClient) UserAgent() string {
	return c.userAgent
}

// FetchCompanyFacts retrieves and parses the companyfacts document for a CIK.
//
// The CIK may be unpadded or carry a "CIK" prefix; it is normalized to 10 digits.
func (c *EDGARClient) FetchCompanyFacts(ctx context.Context, cik string) (*facts.Document, error) {
	padded, err := facts.NormalizeCIK(cik)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, c.dataURL+fmt.Sprintf(CompanyFactsPath, padded))
	if err != nil {
		return nil, fmt.Errorf("company facts for CIK %s: %w", padded, err)
	}

	doc, err := facts.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("company facts for CIK %s: %w", padded, err)
	}
	return doc, nil
}

// FetchCompanyInfo retrieves company submission data from SEC EDGAR.
func (c *EDGARClient) FetchCompanyInfo(ctx context.Context, cik string) (*CompanyInfo, error) {
	padded, err := facts.NormalizeCIK(cik)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, c.dataURL+fmt.Sprintf(SubmissionsPath, padded))
	if err != nil {
		return nil, fmt.Errorf("submissions for CIK %s: %w", padded, err)
	}

	var info CompanyInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse SEC response: %w", err)
	}
	return &info, nil
}

// FetchCompanyTickers downloads the ticker directory in SEC listing order.
func (c *EDGARClient) FetchCompanyTickers(ctx context.Context) ([]Company, error) {
	body, err := c.get(ctx, c.filesURL+TickersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker mapping: %w", err)
	}
	return ParseCompanyTickers(body)
}

// ParseCompanyTickers decodes company_tickers.json.
// Response structure: { "0": {"cik_str": 320193, "ticker": "AAPL", "title": "..."}, ... }
func ParseCompanyTickers(data []byte) ([]Company, error) {
	var mapping map[string]struct {
		CIK    int64  `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("failed to parse ticker mapping: %w", err)
	}

	// JSON object order is lost in the map; the numeric keys carry SEC's ranking.
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})

	entries := make([]Company, 0, len(keys))
	for _, k := range keys {
		e := mapping[k]
		entries = append(entries, Company{
			CIK:    fmt.Sprintf("%010d", e.CIK),
			Ticker: strings.ToUpper(e.Ticker),
			Name:   e.Title,
		})
	}
	return entries, nil
}

// LookupCIKByTicker finds the CIK for a given ticker symbol.
func (c *EDGARClient) LookupCIKByTicker(ctx context.Context, ticker string) (string, error) {
	entries, err := c.FetchCompanyTickers(ctx)
	if err != nil {
		return "", err
	}

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	for _, entry := range entries {
		if entry.Ticker == ticker {
			return entry.CIK, nil
		}
	}
	return "", fmt.Errorf("ticker %s: %w", ticker, ErrNotFound)
}

// =============================================================================
// RATE-LIMITED TRANSPORT
// =============================================================================

// get performs a rate-limited GET, retrying on 429 with Retry-After.
func (c *EDGARClient) get(ctx context.Context, url string) ([]byte, error) {
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		// SEC requires User-Agent header
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("SEC API request failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := ParseRetryAfter(resp.Header.Get("Retry-After"))
			if delay <= 0 {
				delay = c.retryDelay * time.Duration(attempt+1)
			}
			resp.Body.Close()
			log.Printf("[EDGAR] 429 from %s, retrying in %v (attempt %d/%d)", url, delay, attempt+1, MaxRetries)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		body, err := readBody(resp)
		if err != nil {
			return nil, err
		}
		return body, nil
	}
	return nil, fmt.Errorf("max retries exceeded after 429 responses from %s: %w", url, ErrRateLimited)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// ParseRetryAfter accepts delta-seconds or an HTTP date. It returns 0 when the
// header is absent or unusable.
func ParseRetryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
