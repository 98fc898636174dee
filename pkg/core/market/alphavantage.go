// Package market fetches quotes and daily price history from Alpha Vantage.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"financial_lookup/pkg/core/cache"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://www.alphavantage.co/query"

	// TradingDays is roughly one year of sessions.
	TradingDays = 252
)

var (
	// ErrAPI wraps an "Error Message" payload.
	ErrAPI = errors.New("alpha vantage API error")
	// ErrRateLimited wraps a "Note" or "Information" payload.
	ErrRateLimited = errors.New("alpha vantage rate limit")
	// ErrNoData is returned when the expected series or quote is missing.
	ErrNoData = errors.New("no market data")
	// ErrNoAPIKey is returned before any request when no key is configured.
	ErrNoAPIKey = errors.New("alpha vantage API key not configured")
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MinDelay   time.Duration // minimum spacing between requests
	CacheTTL   time.Duration
	HTTPClient *http.Client
}

// Client is an Alpha Vantage client with request spacing and a response cache.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	series     *cache.TTL[*Series]
	quotes     *cache.TTL[*Quote]
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.MinDelay > 0 {
		limit = rate.Every(cfg.MinDelay)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		series:     cache.NewTTL[*Series](cfg.CacheTTL),
		quotes:     cache.NewTTL[*Quote](cfg.CacheTTL),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// ClearCache drops cached quotes and series.
func (c *Client) ClearCache() {
	c.series.Clear()
	c.quotes.Clear()
}

// =============================================================================
// QUOTES
// =============================================================================

// Quote is the GLOBAL_QUOTE result.
type Quote struct {
	Symbol           string  `json:"symbol"`
	Price            float64 `json:"price"`
	Open             float64 `json:"open"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	Volume           int64   `json:"volume"`
	LatestTradingDay string  `json:"latest_trading_day"`
	PreviousClose    float64 `json:"previous_close"`
	Change           float64 `json:"change"`
	ChangePercent    float64 `json:"change_percent"`
}

// GlobalQuote fetches the latest quote for symbol.
func (c *Client) GlobalQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return c.quotes.GetOrLoad("quote_"+symbol, func() (*Quote, error) {
		var raw struct {
			Quote map[string]string `json:"Global Quote"`
		}
		if err := c.query(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}}, &raw); err != nil {
			return nil, fmt.Errorf("quote for %s: %w", symbol, err)
		}
		if len(raw.Quote) == 0 {
			return nil, fmt.Errorf("quote for %s: %w", symbol, ErrNoData)
		}
		return parseQuote(raw.Quote), nil
	})
}

func parseQuote(q map[string]string) *Quote {
	num := func(key string) float64 {
		v, _ := strconv.ParseFloat(strings.TrimSuffix(q[key], "%"), 64)
		return v
	}
	vol, _ := strconv.ParseInt(q["06. volume"], 10, 64)

	return &Quote{
		Symbol:           q["01. symbol"],
		Open:             num("02. open"),
		High:             num("03. high"),
		Low:              num("04. low"),
		Price:            num("05. price"),
		Volume:           vol,
		LatestTradingDay: q["07. latest trading day"],
		PreviousClose:    num("08. previous close"),
		Change:           num("09. change"),
		ChangePercent:    num("10. change percent"),
	}
}

// =============================================================================
// DAILY SERIES
// =============================================================================

// PricePoint is one trading day.
type PricePoint struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Series is a processed TIME_SERIES_DAILY response, oldest point first.
type Series struct {
	Symbol        string       `json:"symbol"`
	LastRefreshed string       `json:"last_refreshed"`
	TimeZone      string       `json:"time_zone"`
	Prices        []PricePoint `json:"prices"`
	LatestPrice   float64      `json:"latest_price"`
	Change        PriceChange  `json:"change"`
	Summary       *Summary     `json:"summary,omitempty"`
}

// DailySeries fetches up to TradingDays of daily prices for symbol.
// outputSize is "compact" (100 points) or "full".
func (c *Client) DailySeries(ctx context.Context, symbol, outputSize string) (*Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if outputSize == "" {
		outputSize = "compact"
	}

	key := fmt.Sprintf("daily_%s_%s", symbol, outputSize)
	return c.series.GetOrLoad(key, func() (*Series, error) {
		log.Printf("[MARKET] Fetching daily stock data for %s", symbol)

		var raw struct {
			Meta       map[string]string            `json:"Meta Data"`
			TimeSeries map[string]map[string]string `json:"Time Series (Daily)"`
		}
		params := url.Values{
			"function":   {"TIME_SERIES_DAILY"},
			"symbol":     {symbol},
			"outputsize": {outputSize},
		}
		if err := c.query(ctx, params, &raw); err != nil {
			return nil, fmt.Errorf("daily series for %s: %w", symbol, err)
		}
		if len(raw.TimeSeries) == 0 {
			return nil, fmt.Errorf("daily series for %s: %w", symbol, ErrNoData)
		}
		return buildSeries(symbol, raw.Meta, raw.TimeSeries), nil
	})
}

func buildSeries(symbol string, meta map[string]string, ts map[string]map[string]string) *Series {
	// ISO dates sort chronologically as strings
	dates := make([]string, 0, len(ts))
	for d := range ts {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > TradingDays {
		dates = dates[len(dates)-TradingDays:]
	}

	prices := make([]PricePoint, 0, len(dates))
	for _, d := range dates {
		day := ts[d]
		num := func(key string) float64 {
			v, _ := strconv.ParseFloat(day[key], 64)
			return v
		}
		vol, _ := strconv.ParseInt(day["5. volume"], 10, 64)
		prices = append(prices, PricePoint{
			Date:   d,
			Open:   num("1. open"),
			High:   num("2. high"),
			Low:    num("3. low"),
			Close:  num("4. close"),
			Volume: vol,
		})
	}

	s := &Series{
		Symbol:        symbol,
		LastRefreshed: meta["3. Last Refreshed"],
		TimeZone:      meta["5. Time Zone"],
		Prices:        prices,
		Change:        Change(prices),
		Summary:       Summarize(prices),
	}
	if n := len(prices); n > 0 {
		s.LatestPrice = prices[n-1].Close
	}
	return s
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) query(ctx context.Context, params url.Values, out any) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	params.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Financial-Lookup-App/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("alpha vantage request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alpha vantage returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// API-level errors arrive as 200 with a single message field.
	var status struct {
		ErrorMessage string `json:"Error Message"`
		Note         string `json:"Note"`
		Information  string `json:"Information"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	switch {
	case status.ErrorMessage != "":
		return fmt.Errorf("%w: %s", ErrAPI, status.ErrorMessage)
	case status.Note != "":
		return fmt.Errorf("%w: %s", ErrRateLimited, status.Note)
	case status.Information != "":
		return fmt.Errorf("%w: %s", ErrRateLimited, status.Information)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
