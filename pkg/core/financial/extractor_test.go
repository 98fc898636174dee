package financial

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"financial_lookup/pkg/core/facts"
	"financial_lookup/pkg/core/facts/factstest"
)

// =============================================================================
// FIXTURES
// =============================================================================

var (
	obs      = factstest.Obs
	usd      = factstest.USD
	newDoc   = factstest.Document
	appleDoc = factstest.Apple
)

func mustExtractor(t *testing.T, year int) *Extractor {
	t.Helper()
	e, err := NewExtractor(DefaultCatalogue(), year)
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	return e
}

// =============================================================================
// SELECTION POLICY
// =============================================================================

func TestSelectLatest_LaterEndWinsRegardlessOfOrder(t *testing.T) {
	early := obs(100, 2024, "2024-03-31")
	late := obs(200, 2024, "2024-09-28")

	orders := [][]facts.Observation{
		{early, late},
		{late, early},
	}

	for i, order := range orders {
		got, ok := SelectLatest(order, 2024)
		if !ok {
			t.Fatalf("order %d: expected a selection", i)
		}
		if got.Value != 200 {
			t.Errorf("order %d: selected %v, want 200", i, got.Value)
		}
	}
}

func TestSelectLatest_TieLastListedWins(t *testing.T) {
	original := obs(100, 2024, "2024-09-28")
	restated := obs(105, 2024, "2024-09-28")

	got, _ := SelectLatest([]facts.Observation{original, restated}, 2024)
	if got.Value != 105 {
		t.Errorf("tie: selected %v, want last-listed 105", got.Value)
	}

	got, _ = SelectLatest([]facts.Observation{restated, original}, 2024)
	if got.Value != 100 {
		t.Errorf("tie reversed: selected %v, want last-listed 100", got.Value)
	}
}

func TestQualifies_FiscalYearOrEndDate(t *testing.T) {
	tests := []struct {
		name string
		o    facts.Observation
		year int
		want bool
	}{
		{"fy matches", obs(1, 2024, "2023-12-31"), 2024, true},
		{"end matches", obs(1, 2023, "2024-01-31"), 2024, true},
		{"end matches with no fy", obs(1, 0, "2024-06-30"), 2024, true},
		{"neither", obs(1, 2023, "2023-12-31"), 2024, false},
		{"no end, fy matches", obs(1, 2024, ""), 2024, true},
		{"invalid end", obs(1, 0, "2024-13-45"), 2024, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Qualifies(tt.o, tt.year); got != tt.want {
				t.Errorf("Qualifies = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectLatest_NoQualifying(t *testing.T) {
	if _, ok := SelectLatest([]facts.Observation{obs(1, 2022, "2022-12-31")}, 2024); ok {
		t.Error("expected no selection")
	}
	if _, ok := SelectLatest(nil, 2024); ok {
		t.Error("expected no selection for empty input")
	}
}

// =============================================================================
// STATEMENTS
// =============================================================================

func TestExtractBalanceSheet_OmitsMissingLabels(t *testing.T) {
	e := mustExtractor(t, 2024)

	bs, err := e.ExtractBalanceSheet(appleDoc())
	if err != nil {
		t.Fatalf("ExtractBalanceSheet failed: %v", err)
	}

	for _, label := range []string{"Current Assets", "Cash and Cash Equivalents", "Total Liabilities", "Property Plant Equipment"} {
		if _, ok := bs[label]; ok {
			t.Errorf("%s should be omitted", label)
		}
	}

	assets, ok := bs["Total Assets"]
	if !ok {
		t.Fatal("Total Assets missing")
	}
	if assets.Value != 364980000000 || assets.Date != "2024-09-28" || assets.Formatted != "$364.98B" {
		t.Errorf("Total Assets = %+v", assets)
	}
}

func TestExtract_MultipleTargetYears(t *testing.T) {
	doc := newDoc(facts.Taxonomy{
		"Assets": usd(
			obs(300, 2023, "2023-09-30"),
			obs(400, 2024, "2024-09-28"),
			obs(500, 2025, "2025-09-27"),
		),
	})

	tests := []struct {
		year int
		want float64
	}{
		{2023, 300},
		{2024, 400},
		{2025, 500},
	}

	for _, tt := range tests {
		bs, err := mustExtractor(t, tt.year).ExtractBalanceSheet(doc)
		if err != nil {
			t.Fatalf("year %d: %v", tt.year, err)
		}
		if got := bs["Total Assets"].Value; got != tt.want {
			t.Errorf("year %d: Total Assets = %v, want %v", tt.year, got, tt.want)
		}
	}

	bs, _ := mustExtractor(t, 2022).ExtractBalanceSheet(doc)
	if len(bs) != 0 {
		t.Errorf("year 2022: expected empty statement, got %v", bs)
	}
}

func TestExtractIncomeStatement_PerShareUnit(t *testing.T) {
	is, err := mustExtractor(t, 2024).ExtractIncomeStatement(appleDoc())
	if err != nil {
		t.Fatalf("ExtractIncomeStatement failed: %v", err)
	}

	eps, ok := is["Earnings Per Share (Basic)"]
	if !ok {
		t.Fatal("EPS (Basic) missing")
	}
	if eps.Formatted != "$6.11" {
		t.Errorf("EPS formatted = %q, want $6.11", eps.Formatted)
	}
	if _, ok := is["Earnings Per Share (Diluted)"]; ok {
		t.Error("EPS (Diluted) should be omitted")
	}
}

func TestExtractCashFlow_FreeCashFlow(t *testing.T) {
	tests := []struct {
		name    string
		capex   *float64
		ocf     *float64
		wantFCF *float64
	}{
		{"negative capex", ptr(-300), ptr(1000), ptr(700)},
		{"positive capex", ptr(300), ptr(1000), ptr(700)},
		{"negative operating cash flow", ptr(300), ptr(-100), ptr(-400)},
		{"missing capex", nil, ptr(1000), nil},
		{"missing operating cash flow", ptr(300), nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			concepts := facts.Taxonomy{}
			if tt.ocf != nil {
				concepts["NetCashProvidedByUsedInOperatingActivities"] = usd(obs(*tt.ocf, 2024, "2024-09-28"))
			}
			if tt.capex != nil {
				concepts["PaymentsToAcquirePropertyPlantAndEquipment"] = usd(obs(*tt.capex, 2024, "2024-06-30"))
			}

			cf, err := mustExtractor(t, 2024).ExtractCashFlow(newDoc(concepts))
			if err != nil {
				t.Fatalf("ExtractCashFlow failed: %v", err)
			}

			fcf, ok := cf["Free Cash Flow"]
			if tt.wantFCF == nil {
				if ok {
					t.Errorf("Free Cash Flow should be omitted, got %+v", fcf)
				}
				return
			}
			if !ok {
				t.Fatal("Free Cash Flow missing")
			}
			if fcf.Value != *tt.wantFCF {
				t.Errorf("Free Cash Flow = %v, want %v", fcf.Value, *tt.wantFCF)
			}
			if fcf.Date != "2024-09-28" {
				t.Errorf("Free Cash Flow date = %s, want operating cash flow date", fcf.Date)
			}
		})
	}
}

func TestExtractCashFlow_AppleFormatted(t *testing.T) {
	cf, err := mustExtractor(t, 2024).ExtractCashFlow(appleDoc())
	if err != nil {
		t.Fatalf("ExtractCashFlow failed: %v", err)
	}
	if got := cf["Free Cash Flow"].Formatted; got != "$108.81B" {
		t.Errorf("Free Cash Flow formatted = %q, want $108.81B", got)
	}
}

func ptr(v float64) *float64 { return &v }

// =============================================================================
// KEY METRICS
// =============================================================================

func TestExtractKeyMetrics_NetProfitMargin(t *testing.T) {
	doc := newDoc(facts.Taxonomy{
		"NetIncomeLoss": usd(obs(50, 2024, "2024-12-31")),
		"Revenues":      usd(obs(200, 2024, "2024-12-31")),
	})

	km, err := mustExtractor(t, 2024).ExtractKeyMetrics(doc)
	if err != nil {
		t.Fatalf("ExtractKeyMetrics failed: %v", err)
	}

	npm, ok := km["Net Profit Margin"]
	if !ok {
		t.Fatal("Net Profit Margin missing")
	}
	if npm.Value != 25 || npm.Formatted != "25.00%" {
		t.Errorf("Net Profit Margin = %+v, want 25 / 25.00%%", npm)
	}

	for _, label := range []string{"Asset Turnover", "Return on Equity", "Return on Assets"} {
		if _, ok := km[label]; ok {
			t.Errorf("%s should be omitted without assets/equity", label)
		}
	}
}

func TestExtractKeyMetrics_Apple(t *testing.T) {
	km, err := mustExtractor(t, 2024).ExtractKeyMetrics(appleDoc())
	if err != nil {
		t.Fatalf("ExtractKeyMetrics failed: %v", err)
	}

	want := map[string]string{
		"Asset Turnover":    "1.07x",
		"Return on Equity":  "164.59%",
		"Return on Assets":  "25.68%",
		"Net Profit Margin": "23.97%",
	}
	for label, formatted := range want {
		got, ok := km[label]
		if !ok {
			t.Errorf("%s missing", label)
			continue
		}
		if got.Formatted != formatted {
			t.Errorf("%s = %q, want %q", label, got.Formatted, formatted)
		}
	}

	// Date comes from the first-listed operand.
	if km["Asset Turnover"].Date != "2024-09-28" {
		t.Errorf("Asset Turnover date = %s", km["Asset Turnover"].Date)
	}
}

func TestExtractKeyMetrics_ZeroDenominator(t *testing.T) {
	doc := newDoc(facts.Taxonomy{
		"NetIncomeLoss":      usd(obs(50, 2024, "2024-12-31")),
		"Revenues":           usd(obs(0, 2024, "2024-12-31")),
		"Assets":             usd(obs(1000, 2024, "2024-12-31")),
		"StockholdersEquity": usd(obs(0, 2024, "2024-12-31")),
	})

	km, err := mustExtractor(t, 2024).ExtractKeyMetrics(doc)
	if err != nil {
		t.Fatalf("ExtractKeyMetrics failed: %v", err)
	}

	if _, ok := km["Net Profit Margin"]; ok {
		t.Error("Net Profit Margin should be unavailable with zero revenue")
	}
	if _, ok := km["Return on Equity"]; ok {
		t.Error("Return on Equity should be unavailable with zero equity")
	}
	// Zero numerator is fine.
	if got := km["Asset Turnover"]; got.Formatted != "0.00x" {
		t.Errorf("Asset Turnover = %+v, want 0.00x", got)
	}
	if got := km["Return on Assets"]; got.Formatted != "5.00%" {
		t.Errorf("Return on Assets = %+v, want 5.00%%", got)
	}

	for label, m := range km {
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			t.Errorf("%s has non-finite value %v", label, m.Value)
		}
	}
}

func TestExtractKeyMetrics_OperandsFromDifferentPeriods(t *testing.T) {
	doc := newDoc(facts.Taxonomy{
		"NetIncomeLoss": usd(obs(30, 2024, "2024-12-31")),
		"Assets":        usd(obs(600, 2024, "2024-09-30")),
	})

	km, _ := mustExtractor(t, 2024).ExtractKeyMetrics(doc)
	roa, ok := km["Return on Assets"]
	if !ok {
		t.Fatal("Return on Assets missing")
	}
	if roa.Formatted != "5.00%" || roa.Date != "2024-12-31" {
		t.Errorf("Return on Assets = %+v", roa)
	}
}

func TestRatio(t *testing.T) {
	if _, err := Ratio(1, 0, 100); !errors.Is(err, ErrMetricUnavailable) {
		t.Errorf("expected ErrMetricUnavailable, got %v", err)
	}
	v, err := Ratio(50, 200, 100)
	if err != nil || v != 25 {
		t.Errorf("Ratio(50, 200, 100) = %v, %v", v, err)
	}
}

// =============================================================================
// ERRORS & PURITY
// =============================================================================

func TestExtract_MalformedDocument(t *testing.T) {
	e := mustExtractor(t, 2024)
	docs := map[string]*facts.Document{
		"nil":               nil,
		"no facts":          {EntityName: "Broken"},
		"missing namespace": {EntityName: "IFRS filer", Facts: map[string]facts.Taxonomy{"ifrs-full": {}}},
	}

	calls := map[string]func(*facts.Document) (Statement, error){
		"balance sheet":    e.ExtractBalanceSheet,
		"income statement": e.ExtractIncomeStatement,
		"cash flow":        e.ExtractCashFlow,
		"key metrics":      e.ExtractKeyMetrics,
	}

	for docName, doc := range docs {
		for callName, call := range calls {
			stmt, err := call(doc)
			if !errors.Is(err, facts.ErrMalformedDocument) {
				t.Errorf("%s/%s: expected ErrMalformedDocument, got %v", docName, callName, err)
			}
			if stmt != nil {
				t.Errorf("%s/%s: expected nil statement, got %v", docName, callName, stmt)
			}
		}
		if _, err := e.Process(doc); !errors.Is(err, facts.ErrMalformedDocument) {
			t.Errorf("%s/Process: expected ErrMalformedDocument, got %v", docName, err)
		}
	}
}

func TestExtract_Idempotent(t *testing.T) {
	e := mustExtractor(t, 2024)
	doc := appleDoc()

	first, err := e.Process(doc)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	second, _ := e.Process(doc)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("outputs differ:\n%s\n%s", a, b)
	}
	if !reflect.DeepEqual(first.KeyMetrics, second.KeyMetrics) {
		t.Error("key metrics differ between calls")
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	doc := appleDoc()

	bs, err := ExtractBalanceSheet(doc, 2024)
	if err != nil || len(bs) != 2 {
		t.Errorf("ExtractBalanceSheet = %v, %v", bs, err)
	}
	km, err := ExtractKeyMetrics(doc, 2024)
	if err != nil || len(km) != 4 {
		t.Errorf("ExtractKeyMetrics = %v, %v", km, err)
	}
	if _, err := ExtractCashFlow(doc, 24); !errors.Is(err, ErrConfiguration) {
		t.Errorf("2-digit year: expected ErrConfiguration, got %v", err)
	}
	if is, err := ExtractIncomeStatement(doc, 2024); err != nil || len(is) != 3 {
		t.Errorf("ExtractIncomeStatement = %v, %v", is, err)
	}
}

func TestProcess_Ordered(t *testing.T) {
	fin, err := mustExtractor(t, 2024).Process(appleDoc())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if fin.Company.Name != "Apple Inc." || fin.Company.CIK != "0000320193" || fin.FiscalYear != 2024 {
		t.Errorf("company = %+v, year = %d", fin.Company, fin.FiscalYear)
	}

	rows := fin.Ordered(SectionCashFlow)
	wantLabels := []string{"Operating Cash Flow", "Investing Cash Flow", "Financing Cash Flow", "Capital Expenditures", "Free Cash Flow"}
	if len(rows) != len(wantLabels) {
		t.Fatalf("got %d rows, want %d", len(rows), len(wantLabels))
	}
	for i, row := range rows {
		if row.Label != wantLabels[i] {
			t.Errorf("row %d = %s, want %s", i, row.Label, wantLabels[i])
		}
	}
	if rows[1].Available {
		t.Error("Investing Cash Flow should be unavailable")
	}
	if !rows[4].Available {
		t.Error("Free Cash Flow should be available")
	}

	if fin.Empty() {
		t.Error("Empty() = true for populated financials")
	}
}
