// Package news searches recent company news through the Serper API.
package news

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"financial_lookup/pkg/core/cache"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultBaseURL = "https://google.serper.dev"
	DefaultResults = 5
)

// ErrNoAPIKey is returned before any request when no key is configured.
var ErrNoAPIKey = errors.New("serper API key not configured")

// Article is one news result.
type Article struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date"` // as reported, e.g. "2 hours ago"
	Source   string `json:"source"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	CacheTTL   time.Duration
	HTTPClient *http.Client
}

// Client calls Serper's search endpoint with type "news".
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.TTL[[]Article]
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		cache:      cache.NewTTL[[]Article](cfg.CacheTTL),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// ClearCache drops every cached search.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// Search returns up to n recent articles about companyName. n <= 0 uses
// DefaultResults.
func (c *Client) Search(ctx context.Context, companyName string, n int) ([]Article, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if n <= 0 {
		n = DefaultResults
	}

	key := fmt.Sprintf("%s-%d", companyName, n)
	return c.cache.GetOrLoad(key, func() ([]Article, error) {
		articles, err := c.search(ctx, companyName+" news", n)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch news: %w", err)
		}
		return articles, nil
	})
}

func (c *Client) search(ctx context.Context, query string, n int) ([]Article, error) {
	payload, err := json.Marshal(map[string]any{
		"q":    query,
		"type": "news",
		"num":  n,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serper returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		News []Article `json:"news"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse serper response: %w", err)
	}

	articles := result.News
	if len(articles) > n {
		articles = articles[:n]
	}
	for i := range articles {
		articles[i].Title = PlainText(articles[i].Title)
		articles[i].Snippet = PlainText(articles[i].Snippet)
	}
	return articles, nil
}

// PlainText strips markup and entities from a snippet and collapses whitespace.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
