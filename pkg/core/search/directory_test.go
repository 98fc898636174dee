package search

import (
	"testing"

	"financial_lookup/pkg/core/ingest"
)

var companies = []ingest.Company{
	{CIK: "0000320193", Ticker: "AAPL", Name: "Apple Inc."},
	{CIK: "0000789019", Ticker: "MSFT", Name: "MICROSOFT CORP"},
	{CIK: "0001652044", Ticker: "GOOGL", Name: "Alphabet Inc."},
	{CIK: "0001318605", Ticker: "TSLA", Name: "Tesla, Inc."},
	{CIK: "0001418091", Ticker: "APLE", Name: "Apple Hospitality REIT, Inc."},
	{CIK: "0000002488", Ticker: "AMD", Name: "ADVANCED MICRO DEVICES INC"},
	{CIK: "0001090872", Ticker: "A", Name: "AGILENT TECHNOLOGIES, INC."},
}

func tickersOf(cs []ingest.Company) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Ticker
	}
	return out
}

func TestFind_Ranking(t *testing.T) {
	d := NewDirectory(companies)

	tests := []struct {
		query string
		limit int
		want  []string
	}{
		{"ap", 0, []string{"APLE", "AAPL"}},
		{"apple", 0, []string{"AAPL", "APLE"}},
		{"MICRO", 0, []string{"MSFT", "AMD"}},
		{"inc", 0, []string{"AAPL", "GOOGL", "TSLA", "APLE", "AMD", "A"}},
		{"inc", 2, []string{"AAPL", "GOOGL"}},
		{"zzzz", 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := tickersOf(d.Find(tt.query, tt.limit))
			if len(got) != len(tt.want) {
				t.Fatalf("Find(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Find(%q)[%d] = %s, want %s", tt.query, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFind_ShortQuery(t *testing.T) {
	d := NewDirectory(companies)
	if got := d.Find("a", 10); got != nil {
		t.Errorf("expected nil for one-character query, got %v", tickersOf(got))
	}
	if got := d.Find("  ", 10); got != nil {
		t.Errorf("expected nil for blank query, got %v", tickersOf(got))
	}
}

func TestLookup(t *testing.T) {
	d := NewDirectory(companies)

	tests := []struct {
		query string
		want  string
		found bool
	}{
		{"aapl", "AAPL", true},         // exact ticker
		{"A", "A", true},               // exact ticker beats name substring
		{"tesla", "TSLA", true},        // name substring
		{"micro devices", "AMD", true}, // name substring with space
		{"alpha goog", "GOOGL", true},  // fuzzy: word match on name
		{"qqqq", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, ok := d.Lookup(tt.query)
			if ok != tt.found {
				t.Fatalf("Lookup(%q) found = %v, want %v", tt.query, ok, tt.found)
			}
			if ok && c.Ticker != tt.want {
				t.Errorf("Lookup(%q) = %s, want %s", tt.query, c.Ticker, tt.want)
			}
		})
	}
}

func TestByCIK(t *testing.T) {
	d := NewDirectory(companies)

	if c, ok := d.ByCIK("320193"); !ok || c.Ticker != "AAPL" {
		t.Errorf("ByCIK(320193) = %+v, %v", c, ok)
	}
	if c, ok := d.ByCIK("CIK0000789019"); !ok || c.Ticker != "MSFT" {
		t.Errorf("ByCIK(prefixed) = %+v, %v", c, ok)
	}
	if _, ok := d.ByCIK("999"); ok {
		t.Error("expected miss for unknown CIK")
	}
	if _, ok := d.ByCIK("abc"); ok {
		t.Error("expected miss for invalid CIK")
	}
	if c, ok := d.ByTicker(" msft "); !ok || c.CIK != "0000789019" {
		t.Errorf("ByTicker(msft) = %+v, %v", c, ok)
	}
	if _, ok := d.ByTicker("MSF"); ok {
		t.Error("ByTicker should not match prefixes")
	}
	if d.Len() != len(companies) {
		t.Errorf("Len = %d", d.Len())
	}
}
