package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const quoteBody = `{
  "Global Quote": {
    "01. symbol": "AAPL",
    "02. open": "226.40",
    "03. high": "228.10",
    "04. low": "225.90",
    "05. price": "227.55",
    "06. volume": "41200000",
    "07. latest trading day": "2024-11-01",
    "08. previous close": "225.91",
    "09. change": "1.64",
    "10. change percent": "0.7260%"
  }
}`

func dailyBody(days int) string {
	var b strings.Builder
	b.WriteString(`{"Meta Data": {"3. Last Refreshed": "2024-12-31", "5. Time Zone": "US/Eastern"}, "Time Series (Daily)": {`)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		fmt.Fprintf(&b, `"%s": {"1. open": "%d", "2. high": "%d", "3. low": "%d", "4. close": "%d", "5. volume": "1000"}`, d, 100+i, 101+i, 99+i, 100+i)
	}
	b.WriteString("}}")
	return b.String()
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "demo", CacheTTL: time.Minute})
}

func TestGlobalQuote(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(quoteBody))
	})

	q, err := c.GlobalQuote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("GlobalQuote failed: %v", err)
	}
	if !strings.Contains(gotQuery, "function=GLOBAL_QUOTE") || !strings.Contains(gotQuery, "symbol=AAPL") || !strings.Contains(gotQuery, "apikey=demo") {
		t.Errorf("query = %q", gotQuery)
	}
	if q.Price != 227.55 || q.Volume != 41200000 || math.Abs(q.ChangePercent-0.726) > 1e-9 {
		t.Errorf("quote = %+v", q)
	}
}

func TestDailySeries_TrimsAndSorts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(dailyBody(300)))
	})

	s, err := c.DailySeries(context.Background(), "AAPL", "full")
	if err != nil {
		t.Fatalf("DailySeries failed: %v", err)
	}
	if len(s.Prices) != TradingDays {
		t.Fatalf("len(Prices) = %d, want %d", len(s.Prices), TradingDays)
	}
	// oldest 48 days dropped; closes ascend 100..399
	if s.Prices[0].Close != 148 || s.LatestPrice != 399 {
		t.Errorf("first close = %v, latest = %v", s.Prices[0].Close, s.LatestPrice)
	}
	for i := 1; i < len(s.Prices); i++ {
		if s.Prices[i].Date <= s.Prices[i-1].Date {
			t.Fatalf("prices not chronological at %d", i)
		}
	}
	if s.Change.Amount != 1 || !s.Change.IsPositive {
		t.Errorf("change = %+v", s.Change)
	}
	if s.Summary == nil || s.Summary.High52Week != 399 || s.Summary.Low52Week != 148 || s.Summary.AverageVolume != 1000 {
		t.Errorf("summary = %+v", s.Summary)
	}
	if s.TimeZone != "US/Eastern" {
		t.Errorf("TimeZone = %q", s.TimeZone)
	}
}

func TestDailySeries_Cached(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(dailyBody(5)))
	})

	for i := 0; i < 3; i++ {
		if _, err := c.DailySeries(context.Background(), "AAPL", ""); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("server hit %d times, want 1", calls)
	}

	c.ClearCache()
	if _, err := c.DailySeries(context.Background(), "AAPL", ""); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("server hit %d times after clear, want 2", calls)
	}
}

func TestQuery_APIErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"error message", `{"Error Message": "Invalid API call."}`, ErrAPI},
		{"note", `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`, ErrRateLimited},
		{"information", `{"Information": "rate limit reached"}`, ErrRateLimited},
		{"empty series", `{"Meta Data": {}}`, ErrNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			if _, err := c.DailySeries(context.Background(), "AAPL", ""); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestQuery_NoAPIKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	if c.Enabled() {
		t.Error("client without key should not be enabled")
	}
	if _, err := c.GlobalQuote(context.Background(), "AAPL"); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestQuery_HTTPStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.GlobalQuote(context.Background(), "AAPL")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status error, got %v", err)
	}
}
