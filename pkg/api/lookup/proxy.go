package lookup

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"financial_lookup/pkg/core/ingest"
	"financial_lookup/pkg/core/market"
)

const (
	// SECProxyPrefix forwards to data.sec.gov/api/xbrl/.
	SECProxyPrefix = "/api/sec/"
	// AlphaVantageProxyPath forwards to the Alpha Vantage query endpoint.
	AlphaVantageProxyPath = "/api/alphavantage"
)

// ProxyConfig configures the pass-through proxies used by browser clients that
// cannot call SEC or Alpha Vantage directly.
type ProxyConfig struct {
	SECDataURL      string
	UserAgent       string
	AlphaVantageURL string
	AlphaVantageKey string
	Transport       http.RoundTripper
}

// newSECProxy forwards /api/sec/<rest> to <data url>/api/xbrl/<rest> with the
// User-Agent SEC requires.
func newSECProxy(cfg ProxyConfig) (http.Handler, error) {
	base := cfg.SECDataURL
	if base == "" {
		base = ingest.DefaultDataURL
	}
	target, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEC data URL %q: %w", base, err)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = ingest.DefaultUserAgent
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			rest := strings.TrimPrefix(pr.In.URL.Path, SECProxyPrefix)
			pr.Out.URL.Scheme = target.Scheme
			pr.Out.URL.Host = target.Host
			pr.Out.URL.Path = target.Path + "/api/xbrl/" + rest
			pr.Out.URL.RawPath = ""
			pr.Out.Host = target.Host
			pr.Out.Header.Set("User-Agent", ua)
			pr.Out.Header.Set("Accept", "application/json")
		},
		Transport:      cfg.Transport,
		ModifyResponse: stripUpstreamCORS,
		ErrorHandler:   proxyError("SEC"),
	}
	return getOnly(proxy), nil
}

// newAlphaVantageProxy forwards the query string to the query endpoint and appends
// the server's API key, so the key never reaches the browser.
func newAlphaVantageProxy(cfg ProxyConfig) (http.Handler, error) {
	base := cfg.AlphaVantageURL
	if base == "" {
		base = market.DefaultBaseURL
	}
	target, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid Alpha Vantage URL %q: %w", base, err)
	}
	key := cfg.AlphaVantageKey

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			q := pr.In.URL.Query()
			q.Set("apikey", key)
			pr.Out.URL.Scheme = target.Scheme
			pr.Out.URL.Host = target.Host
			pr.Out.URL.Path = target.Path
			pr.Out.URL.RawPath = ""
			pr.Out.URL.RawQuery = q.Encode()
			pr.Out.Host = target.Host
			pr.Out.Header.Set("Accept", "application/json")
		},
		Transport:      cfg.Transport,
		ModifyResponse: stripUpstreamCORS,
		ErrorHandler:   proxyError("Alpha Vantage"),
	}

	return getOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key == "" {
			writeError(w, http.StatusServiceUnavailable, "Alpha Vantage API key is not configured")
			return
		}
		if r.URL.Query().Get("function") == "" {
			writeError(w, http.StatusBadRequest, "function is required")
			return
		}
		proxy.ServeHTTP(w, r)
	})), nil
}

// stripUpstreamCORS leaves CORS to withCORS so headers are not duplicated.
func stripUpstreamCORS(resp *http.Response) error {
	for k := range resp.Header {
		if strings.HasPrefix(k, "Access-Control-") {
			resp.Header.Del(k)
		}
	}
	return nil
}

func proxyError(upstream string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("[PROXY] %s request %s failed: %v", upstream, r.URL.Path, err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch data from %s API", upstream))
	}
}

func getOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}
