// Package analyst turns extracted financials into an LLM-written analysis.
package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"financial_lookup/pkg/core/financial"
	"financial_lookup/pkg/core/llm"
	"financial_lookup/pkg/core/prompt"
	"financial_lookup/pkg/core/store"
	"financial_lookup/pkg/core/utils"
)

var (
	// ErrNoData is returned when there is nothing for the model to analyze.
	ErrNoData = errors.New("no financial data to analyze")
	// ErrInvalidVerdict is returned when the model's verdict cannot be used.
	ErrInvalidVerdict = errors.New("invalid analyst verdict")
)

// Verdict is the structured counterpart to the narrative analysis.
type Verdict struct {
	Rating    string   `json:"rating"` // buy, hold or sell
	Thesis    string   `json:"thesis"`
	Strengths []string `json:"strengths"`
	Concerns  []string `json:"concerns"`
}

// Analyst wraps a provider with the analyst prompts and an optional cache.
type Analyst struct {
	provider llm.Provider
	prompts  *prompt.Registry
	cache    *store.AnalysisCache
}

// New creates an Analyst. A nil registry uses the built-in prompts.
func New(provider llm.Provider, prompts *prompt.Registry) *Analyst {
	if prompts == nil {
		prompts = prompt.NewBuiltinRegistry()
	}
	return &Analyst{provider: provider, prompts: prompts}
}

// WithCache enables result caching.
func (a *Analyst) WithCache(c *store.AnalysisCache) *Analyst {
	a.cache = c
	return a
}

// Provider returns the provider name.
func (a *Analyst) Provider() string {
	return a.provider.Name()
}

// =============================================================================
// SUMMARY
// =============================================================================

var summaryHeadings = []struct {
	section financial.Section
	heading string
}{
	{financial.SectionKeyMetrics, "KEY FINANCIAL METRICS"},
	{financial.SectionBalanceSheet, "BALANCE SHEET HIGHLIGHTS"},
	{financial.SectionIncomeStatement, "INCOME STATEMENT HIGHLIGHTS"},
	{financial.SectionCashFlow, "CASH FLOW HIGHLIGHTS"},
}

// Summary renders the financials as the plain-text block sent to the model.
// Unavailable metrics and empty sections are left out.
func Summary(fin *financial.Financials) string {
	var b strings.Builder
	fmt.Fprintf(&b, "COMPANY: %s\n", fin.Company.Name)
	fmt.Fprintf(&b, "FISCAL YEAR: %d (Latest Available Data)\n\n", fin.FiscalYear)

	for _, h := range summaryHeadings {
		rows := fin.Ordered(h.section)
		var lines []string
		for _, row := range rows {
			if row.Available {
				lines = append(lines, fmt.Sprintf("• %s: %s\n", row.Label, row.Formatted))
			}
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s (%d):\n", h.heading, fin.FiscalYear)
		for _, l := range lines {
			b.WriteString(l)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *Analyst) render(id string, fin *financial.Financials) (string, string, error) {
	vars := prompt.Vars{}.
		Set("CompanyName", fin.Company.Name).
		Set("FiscalYear", fin.FiscalYear).
		Set("Summary", Summary(fin))
	return a.prompts.Render(id, vars)
}

// =============================================================================
// GENERATION
// =============================================================================

// Analyze returns a markdown analysis of fin.
func (a *Analyst) Analyze(ctx context.Context, fin *financial.Financials) (string, error) {
	if fin == nil || fin.Empty() {
		return "", ErrNoData
	}

	entry := a.cached(ctx, fin)
	if entry != nil && entry.Markdown != "" {
		log.Printf("[ANALYST] cache hit for %s %d", fin.Company.CIK, fin.FiscalYear)
		return entry.Markdown, nil
	}

	system, user, err := a.render(prompt.PromptIDs.AnalystSummary, fin)
	if err != nil {
		return "", err
	}

	log.Printf("[ANALYST] generating analysis for %s (%d) via %s", fin.Company.Name, fin.FiscalYear, a.provider.Name())
	out, err := a.provider.GenerateResponse(ctx, user, system, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate AI analysis: %w", err)
	}

	markdown := utils.CleanMarkdown(out)
	entry = a.entryFor(entry, fin)
	entry.Markdown = markdown
	a.store(ctx, entry)
	return markdown, nil
}

// Verdict asks the model for a structured rating. Loose JSON is repaired.
func (a *Analyst) Verdict(ctx context.Context, fin *financial.Financials) (*Verdict, error) {
	if fin == nil || fin.Empty() {
		return nil, ErrNoData
	}

	entry := a.cached(ctx, fin)
	if entry != nil && len(entry.Verdict) > 0 {
		var v Verdict
		if err := json.Unmarshal(entry.Verdict, &v); err == nil {
			return &v, nil
		}
	}

	system, user, err := a.render(prompt.PromptIDs.AnalystVerdict, fin)
	if err != nil {
		return nil, err
	}

	out, err := a.provider.GenerateResponse(ctx, user, system, map[string]interface{}{
		"response_format": map[string]interface{}{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate verdict: %w", err)
	}

	v, err := ParseVerdict(out)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(v); err == nil {
		entry = a.entryFor(entry, fin)
		entry.Verdict = raw
		a.store(ctx, entry)
	}
	return v, nil
}

// ParseVerdict decodes model output into a Verdict and normalizes the rating.
func ParseVerdict(raw string) (*Verdict, error) {
	var v Verdict
	if _, err := utils.DecodeLenient(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerdict, err)
	}

	v.Rating = strings.ToLower(strings.TrimSpace(v.Rating))
	switch v.Rating {
	case "buy", "hold", "sell":
	case "":
		return nil, fmt.Errorf("%w: missing rating", ErrInvalidVerdict)
	default:
		return nil, fmt.Errorf("%w: unknown rating %q", ErrInvalidVerdict, v.Rating)
	}
	return &v, nil
}

// =============================================================================
// CACHE
// =============================================================================

func (a *Analyst) cached(ctx context.Context, fin *financial.Financials) *store.AnalysisEntry {
	if a.cache == nil {
		return nil
	}
	entry, err := a.cache.Get(ctx, fin.Company.CIK, fin.FiscalYear, a.provider.Name())
	if err != nil {
		log.Printf("[ANALYST] cache read failed: %v", err)
		return nil
	}
	return entry
}

func (a *Analyst) entryFor(entry *store.AnalysisEntry, fin *financial.Financials) *store.AnalysisEntry {
	if entry != nil {
		return entry
	}
	return &store.AnalysisEntry{
		CIK:         fin.Company.CIK,
		CompanyName: fin.Company.Name,
		FiscalYear:  fin.FiscalYear,
		Provider:    a.provider.Name(),
	}
}

func (a *Analyst) store(ctx context.Context, entry *store.AnalysisEntry) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Put(ctx, entry); err != nil {
		log.Printf("[ANALYST] cache write failed: %v", err)
	}
}
