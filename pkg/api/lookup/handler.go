// Package lookup provides the HTTP API for company search, extracted
// financials and the HTML report.
package lookup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"financial_lookup/pkg/core/facts"
	"financial_lookup/pkg/core/financial"
	"financial_lookup/pkg/core/ingest"
	"financial_lookup/pkg/core/market"
	"financial_lookup/pkg/core/news"
	"financial_lookup/pkg/core/report"
	"financial_lookup/pkg/core/search"
	"financial_lookup/pkg/core/validate"
)

// FactsSource fetches a companyfacts document.
type FactsSource interface {
	FetchCompanyFacts(ctx context.Context, cik string) (*facts.Document, error)
}

// QuoteSource fetches a latest price quote.
type QuoteSource interface {
	GlobalQuote(ctx context.Context, symbol string) (*market.Quote, error)
}

// NewsSource searches recent news for a company.
type NewsSource interface {
	Search(ctx context.Context, companyName string, n int) ([]news.Article, error)
}

// Analyzer writes a markdown analysis of a company's financials.
type Analyzer interface {
	Analyze(ctx context.Context, fin *financial.Financials) (string, error)
}

// CacheClearer drops in-memory cached responses.
type CacheClearer interface {
	ClearCache()
}

// Options wires a Handler. Facts and Catalogue are required; the rest are
// optional and their endpoints answer 503 when missing.
type Options struct {
	Facts      FactsSource
	Catalogue  *financial.Catalogue
	FiscalYear int // default when the request has no year
	MaxResults int
	Quotes     QuoteSource
	News       NewsSource
	NewsCount  int
	Analyst    Analyzer
	Caches     []CacheClearer
	Proxy      ProxyConfig
}

// Handler holds dependencies for the lookup endpoints.
type Handler struct {
	opts Options

	mu        sync.RWMutex
	directory *search.Directory

	secProxy http.Handler
	avProxy  http.Handler
}

// NewHandler creates a lookup handler.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Facts == nil {
		return nil, errors.New("lookup: facts source is required")
	}
	if opts.Catalogue == nil {
		opts.Catalogue = financial.DefaultCatalogue()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}

	secProxy, err := newSECProxy(opts.Proxy)
	if err != nil {
		return nil, err
	}
	avProxy, err := newAlphaVantageProxy(opts.Proxy)
	if err != nil {
		return nil, err
	}

	return &Handler{opts: opts, secProxy: secProxy, avProxy: avProxy}, nil
}

// SetDirectory installs the company directory used by search. It may be
// called while serving, e.g. after the cache is regenerated.
func (h *Handler) SetDirectory(d *search.Directory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.directory = d
}

func (h *Handler) dir() *search.Directory {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.directory
}

// Routes returns the lookup endpoints wrapped in the request-ID and CORS
// middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", h.HandleSearch)
	mux.HandleFunc("/api/financials", h.HandleFinancials)
	mux.HandleFunc("/api/compare", h.HandleCompare)
	mux.HandleFunc("/api/quote", h.HandleQuote)
	mux.HandleFunc("/api/news", h.HandleNews)
	mux.HandleFunc("/report", h.HandleReport)
	mux.HandleFunc("/api/cache/clear", h.HandleClearCache)
	mux.Handle(SECProxyPrefix, h.secProxy)
	mux.Handle(AlphaVantageProxyPath, h.avProxy)
	mux.Handle(AlphaVantageProxyPath+"/", h.avProxy)
	return withRequestID(withCORS(mux))
}

// =============================================================================
// SEARCH
// =============================================================================

// SearchResponse is returned by /api/search.
type SearchResponse struct {
	Query   string           `json:"query"`
	Results []ingest.Company `json:"results"`
}

// HandleSearch handles GET /api/search?q=&limit=
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	d := h.dir()
	if d == nil {
		writeError(w, http.StatusServiceUnavailable, "company directory not loaded; run gencache")
		return
	}

	q := r.URL.Query().Get("q")
	limit := h.opts.MaxResults
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results := d.Find(q, limit)
	if results == nil {
		results = []ingest.Company{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: results})
}

// =============================================================================
// FINANCIALS
// =============================================================================

// HandleFinancials handles GET /api/financials?cik=&year=
func (h *Handler) HandleFinancials(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	fin, err := h.financials(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fin)
}

// financials resolves cik (or ticker) and year from the query and extracts.
func (h *Handler) financials(r *http.Request) (*financial.Financials, error) {
	doc, year, err := h.document(r)
	if err != nil {
		return nil, err
	}
	return h.extract(doc, year)
}

// document parses the company and year from the query and fetches the
// companyfacts document.
func (h *Handler) document(r *http.Request) (*facts.Document, int, error) {
	q := r.URL.Query()

	cik := strings.TrimSpace(q.Get("cik"))
	if cik == "" {
		if ticker := strings.TrimSpace(q.Get("ticker")); ticker != "" {
			c, ok := h.resolveTicker(ticker)
			if !ok {
				return nil, 0, &requestError{status: http.StatusNotFound, msg: fmt.Sprintf("ticker %s not found", strings.ToUpper(ticker))}
			}
			cik = c
		}
	}
	if cik == "" {
		return nil, 0, &requestError{status: http.StatusBadRequest, msg: "cik is required"}
	}

	year, err := parseYear(q.Get("year"), h.opts.FiscalYear)
	if err != nil {
		return nil, 0, err
	}

	doc, err := h.opts.Facts.FetchCompanyFacts(r.Context(), cik)
	if err != nil {
		return nil, 0, err
	}
	return doc, year, nil
}

func (h *Handler) extract(doc *facts.Document, year int) (*financial.Financials, error) {
	extractor, err := financial.NewExtractor(h.opts.Catalogue, year)
	if err != nil {
		return nil, err
	}
	log.Printf("[LOOKUP] extracting %s (%s) for %d", doc.EntityName, doc.CIK, year)
	return extractor.Process(doc)
}

// HandleCompare handles GET /api/compare?cik=&year=&prior=
// prior defaults to the year before.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	doc, year, err := h.document(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	prior, err := parseYear(r.URL.Query().Get("prior"), year-1)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if prior >= year {
		writeError(w, http.StatusBadRequest, "prior must be earlier than year")
		return
	}

	current, err := h.extract(doc, year)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	previous, err := h.extract(doc, prior)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validate.NewReview(current, previous))
}

func (h *Handler) resolveTicker(ticker string) (string, bool) {
	d := h.dir()
	if d == nil {
		return "", false
	}
	c, ok := d.ByTicker(ticker)
	if !ok {
		return "", false
	}
	return c.CIK, true
}

func parseYear(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	year, err := strconv.Atoi(v)
	if err != nil || year < 1000 || year > 9999 {
		return 0, &requestError{status: http.StatusBadRequest, msg: "year must be a four-digit number"}
	}
	return year, nil
}

// =============================================================================
// MARKET & NEWS
// =============================================================================

// HandleQuote handles GET /api/quote?symbol=
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if h.opts.Quotes == nil {
		writeError(w, http.StatusServiceUnavailable, "market data is not configured")
		return
	}

	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	quote, err := h.opts.Quotes.GlobalQuote(r.Context(), symbol)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// HandleNews handles GET /api/news?company=&n=
func (h *Handler) HandleNews(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if h.opts.News == nil {
		writeError(w, http.StatusServiceUnavailable, "news search is not configured")
		return
	}

	company := strings.TrimSpace(r.URL.Query().Get("company"))
	if company == "" {
		writeError(w, http.StatusBadRequest, "company is required")
		return
	}
	n := h.opts.NewsCount
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}

	articles, err := h.opts.News.Search(r.Context(), company, n)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"company":  company,
		"articles": articles,
	})
}

// =============================================================================
// REPORT
// =============================================================================

// HandleReport handles GET /report?cik=&year=&ticker=&news=1&analysis=1.
// Market data, news and analysis are best effort: a failure there is logged
// and the report is rendered without that section.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	fin, err := h.financials(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	q := r.URL.Query()
	ctx := r.Context()

	var quote *market.Quote
	if ticker := h.tickerFor(q.Get("ticker"), fin.Company.CIK); ticker != "" && h.opts.Quotes != nil {
		if quote, err = h.opts.Quotes.GlobalQuote(ctx, ticker); err != nil {
			log.Printf("[LOOKUP] quote for %s unavailable: %v", ticker, err)
			quote = nil
		}
	}

	var articles []news.Article
	if flag(q.Get("news")) && h.opts.News != nil {
		if articles, err = h.opts.News.Search(ctx, fin.Company.Name, h.opts.NewsCount); err != nil {
			log.Printf("[LOOKUP] news for %s unavailable: %v", fin.Company.Name, err)
			articles = nil
		}
	}

	var analysis string
	if flag(q.Get("analysis")) && h.opts.Analyst != nil {
		if analysis, err = h.opts.Analyst.Analyze(ctx, fin); err != nil {
			log.Printf("[LOOKUP] analysis for %s unavailable: %v", fin.Company.Name, err)
			analysis = ""
		}
	}

	rep := report.Build(fin, quote, articles, analysis)
	var buf bytes.Buffer
	if err := report.Render(&buf, rep); err != nil {
		writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// tickerFor prefers an explicit ticker, then the directory entry for cik.
func (h *Handler) tickerFor(explicit, cik string) string {
	if t := strings.TrimSpace(explicit); t != "" {
		return strings.ToUpper(t)
	}
	if d := h.dir(); d != nil {
		if c, ok := d.ByCIK(cik); ok {
			return c.Ticker
		}
	}
	return ""
}

func flag(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// HandleClearCache handles POST /api/cache/clear
func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	for _, c := range h.opts.Caches {
		c.ClearCache()
	}
	log.Printf("[LOOKUP] cleared %d response caches", len(h.opts.Caches))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Cleared %d caches", len(h.opts.Caches)),
	})
}
