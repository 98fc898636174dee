package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"financial_lookup/pkg/core/facts"
	"financial_lookup/pkg/core/facts/factstest"
	"financial_lookup/pkg/core/financial"
	"financial_lookup/pkg/core/ingest"
	"financial_lookup/pkg/core/market"
	"financial_lookup/pkg/core/news"
	"financial_lookup/pkg/core/search"
	"financial_lookup/pkg/core/validate"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeFacts struct {
	docs  map[string]*facts.Document
	calls int
}

func (f *fakeFacts) FetchCompanyFacts(ctx context.Context, cik string) (*facts.Document, error) {
	f.calls++
	padded, err := facts.NormalizeCIK(cik)
	if err != nil {
		return nil, err
	}
	if padded == "0000000666" {
		return nil, fmt.Errorf("company facts for CIK %s: %w", padded, facts.ErrMalformedDocument)
	}
	if padded == "0000000500" {
		return nil, &ingest.StatusError{URL: "https://data.sec.gov", StatusCode: 500}
	}
	doc, ok := f.docs[padded]
	if !ok {
		return nil, fmt.Errorf("company facts for CIK %s: %w", padded, ingest.ErrNotFound)
	}
	return doc, nil
}

type fakeQuotes struct{ err error }

func (f fakeQuotes) GlobalQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &market.Quote{Symbol: symbol, Price: 227.52, Change: 1.25, ChangePercent: 0.55}, nil
}

type fakeNews struct{}

func (fakeNews) Search(ctx context.Context, companyName string, n int) ([]news.Article, error) {
	return []news.Article{{Title: companyName + " beats estimates", Link: "https://example.com/1"}}, nil
}

type fakeAnalyst struct{}

func (fakeAnalyst) Analyze(ctx context.Context, fin *financial.Financials) (string, error) {
	return "## Verdict\n\n" + fin.Company.Name + " looks healthy.", nil
}

type countingCache struct{ cleared int }

func (c *countingCache) ClearCache() { c.cleared++ }

func newTestHandler(t *testing.T, opts Options) *Handler {
	t.Helper()
	if opts.Facts == nil {
		opts.Facts = &fakeFacts{docs: map[string]*facts.Document{"0000320193": factstest.Apple()}}
	}
	if opts.FiscalYear == 0 {
		opts.FiscalYear = 2024
	}
	h, err := NewHandler(opts)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	h.SetDirectory(search.NewDirectory([]ingest.Company{
		{CIK: "0000320193", Ticker: "AAPL", Name: "Apple Inc."},
		{CIK: "0000789019", Ticker: "MSFT", Name: "MICROSOFT CORP"},
	}))
	return h
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// =============================================================================
// TESTS
// =============================================================================

func TestNewHandler_RequiresFacts(t *testing.T) {
	if _, err := NewHandler(Options{}); err == nil {
		t.Error("expected error without a facts source")
	}
}

func TestSearch(t *testing.T) {
	routes := newTestHandler(t, Options{}).Routes()

	rec := get(t, routes, "/api/search?q=app")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Ticker != "AAPL" {
		t.Errorf("results = %+v", resp.Results)
	}

	rec = get(t, routes, "/api/search?q=zzz")
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("no matches should encode an empty array, got %s", rec.Body)
	}

	if rec := get(t, routes, "/api/search?q=app&limit=x"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d", rec.Code)
	}

	post := httptest.NewRecorder()
	routes.ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/api/search?q=app", nil))
	if post.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: status = %d", post.Code)
	}
}

func TestSearch_NoDirectory(t *testing.T) {
	h, err := NewHandler(Options{Facts: &fakeFacts{}})
	if err != nil {
		t.Fatal(err)
	}
	if rec := get(t, h.Routes(), "/api/search?q=app"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestFinancials(t *testing.T) {
	routes := newTestHandler(t, Options{}).Routes()

	rec := get(t, routes, "/api/financials?cik=320193&year=2024")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var fin financial.Financials
	if err := json.Unmarshal(rec.Body.Bytes(), &fin); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if fin.Company.Name != "Apple Inc." || fin.FiscalYear != 2024 {
		t.Errorf("header = %+v %d", fin.Company, fin.FiscalYear)
	}
	if got := fin.CashFlow["Free Cash Flow"].Formatted; got != "$108.81B" {
		t.Errorf("Free Cash Flow = %q", got)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestFinancials_Errors(t *testing.T) {
	routes := newTestHandler(t, Options{}).Routes()

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"ticker", "/api/financials?ticker=aapl", http.StatusOK},
		{"default year", "/api/financials?cik=320193", http.StatusOK},
		{"missing cik", "/api/financials", http.StatusBadRequest},
		{"unknown ticker", "/api/financials?ticker=ZZZZ", http.StatusNotFound},
		{"invalid cik", "/api/financials?cik=abc", http.StatusBadRequest},
		{"bad year", "/api/financials?cik=320193&year=24", http.StatusBadRequest},
		{"unknown cik", "/api/financials?cik=42", http.StatusNotFound},
		{"malformed", "/api/financials?cik=666", http.StatusBadGateway},
		{"upstream status", "/api/financials?cik=500", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, routes, tt.target)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if tt.want != http.StatusOK {
				var resp ErrorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
					t.Errorf("error body = %s", rec.Body)
				}
				if resp.RequestID == "" {
					t.Error("error body should carry the request ID")
				}
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", facts.ErrInvalidCIK), http.StatusBadRequest},
		{fmt.Errorf("x: %w", ingest.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", facts.ErrMalformedDocument), http.StatusBadGateway},
		{market.ErrNoAPIKey, http.StatusServiceUnavailable},
		{news.ErrNoAPIKey, http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", market.ErrRateLimited), http.StatusTooManyRequests},
		{fmt.Errorf("fetch facts: %w", ingest.ErrRateLimited), http.StatusTooManyRequests},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRequestID(t *testing.T) {
	routes := newTestHandler(t, Options{}).Routes()

	rec := get(t, routes, "/api/search?q=app")
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response should carry a request ID")
	}

	const id = "7d444840-9dc0-11d1-b245-5ffdce74fad2"
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=app", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != id {
		t.Errorf("request ID = %q, want caller's %q", got, id)
	}
}

func TestCORSPreflight(t *testing.T) {
	routes := newTestHandler(t, Options{}).Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/financials", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}

func TestReport(t *testing.T) {
	routes := newTestHandler(t, Options{
		Quotes:  fakeQuotes{},
		News:    fakeNews{},
		Analyst: fakeAnalyst{},
	}).Routes()

	rec := get(t, routes, "/report?cik=320193&year=2024&news=1&analysis=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	body := rec.Body.String()
	for _, want := range []string{"Apple Inc.", "$108.81B", "$227.52", "Apple Inc. beats estimates", "<h2>Verdict</h2>", "AAPL"} {
		if !strings.Contains(body, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestReport_OptionalSectionsFailSoft(t *testing.T) {
	routes := newTestHandler(t, Options{Quotes: fakeQuotes{err: market.ErrRateLimited}}).Routes()

	rec := get(t, routes, "/report?cik=320193&analysis=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Stock Price") {
		t.Error("quote section should be omitted when the quote fails")
	}

	if rec := get(t, routes, "/report?cik=abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid cik: status = %d", rec.Code)
	}
}

func TestQuoteAndNews_NotConfigured(t *testing.T) {
	routes := newTestHandler(t, Options{}).Routes()

	if rec := get(t, routes, "/api/quote?symbol=AAPL"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("quote: status = %d", rec.Code)
	}
	if rec := get(t, routes, "/api/news?company=Apple"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("news: status = %d", rec.Code)
	}
}

func TestQuoteAndNews(t *testing.T) {
	routes := newTestHandler(t, Options{Quotes: fakeQuotes{}, News: fakeNews{}}).Routes()

	rec := get(t, routes, "/api/quote?symbol=AAPL")
	var q market.Quote
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil || q.Symbol != "AAPL" {
		t.Errorf("quote = %s", rec.Body)
	}
	if rec := get(t, routes, "/api/quote"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing symbol: status = %d", rec.Code)
	}

	rec = get(t, routes, "/api/news?company=Apple")
	if !strings.Contains(rec.Body.String(), "Apple beats estimates") {
		t.Errorf("news = %s", rec.Body)
	}
}

func TestClearCache(t *testing.T) {
	a, b := &countingCache{}, &countingCache{}
	routes := newTestHandler(t, Options{Caches: []CacheClearer{a, b}}).Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cache/clear", nil))
	if rec.Code != http.StatusOK || a.cleared != 1 || b.cleared != 1 {
		t.Errorf("status = %d, cleared = %d/%d", rec.Code, a.cleared, b.cleared)
	}

	if rec := get(t, routes, "/api/cache/clear"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d", rec.Code)
	}
}

func TestCompare(t *testing.T) {
	routes := newTestHandler(t, Options{}).Routes()

	rec := get(t, routes, "/api/compare?ticker=aapl&year=2024")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var review validate.Review
	if err := json.Unmarshal(rec.Body.Bytes(), &review); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if review.CurrentYear != 2024 || review.PriorYear != 2023 {
		t.Errorf("years = %d/%d", review.CurrentYear, review.PriorYear)
	}
	if len(review.Changes) != 3 || review.Changes[1].Label != "Total Assets" {
		t.Errorf("changes = %+v", review.Changes)
	}

	tests := []struct {
		target string
		want   int
	}{
		{"/api/compare?cik=320193&year=2024&prior=2024", http.StatusBadRequest},
		{"/api/compare?cik=320193&year=2024&prior=23", http.StatusBadRequest},
		{"/api/compare?year=2024", http.StatusBadRequest},
		{"/api/compare?cik=42", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := get(t, routes, tt.target); rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.target, rec.Code, tt.want)
		}
	}
}
