// Command lookup prints a company's SEC financials for one fiscal year, with
// optional price, news and AI analysis.
//
//	lookup -q AAPL -year 2024 -news -analysis
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"financial_lookup/pkg/core/app"
	"financial_lookup/pkg/core/config"
	"financial_lookup/pkg/core/facts"
	"financial_lookup/pkg/core/financial"
	"financial_lookup/pkg/core/ingest"
	"financial_lookup/pkg/core/market"
	"financial_lookup/pkg/core/news"
	"financial_lookup/pkg/core/validate"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	query := flag.String("q", "", "ticker, company name or CIK")
	year := flag.Int("year", 0, "fiscal year (default from config)")
	withPrice := flag.Bool("price", false, "include the latest quote and one-year price summary")
	withNews := flag.Bool("news", false, "include recent news")
	withAnalysis := flag.Bool("analysis", false, "include an AI analysis")
	withVerdict := flag.Bool("verdict", false, "include a buy/hold/sell verdict")
	compare := flag.Bool("compare", false, "compare with the prior fiscal year")
	historyYears := flag.Int("history", 0, "print revenue and net income growth over N fiscal years")
	asJSON := flag.Bool("json", false, "print the extracted financials as JSON")
	flag.Parse()

	if *query == "" && flag.NArg() > 0 {
		*query = strings.Join(flag.Args(), " ")
	}
	if *query == "" {
		fmt.Fprintln(os.Stderr, "usage: lookup -q <ticker|name|cik> [-year N] [-price] [-news] [-analysis] [-verdict] [-compare] [-history N] [-json]")
		os.Exit(2)
	}

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer a.Close()

	company, err := resolve(ctx, a, *query)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("✅ Found company: %s (%s)\n", company.Name, orNA(company.Ticker))

	fin, err := a.Financials(ctx, company.CIK, *year)
	if err != nil {
		fatal(err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fin); err != nil {
			fatal(err)
		}
		return
	}

	out := os.Stdout
	printHeader(out, company, fin)
	for _, s := range financial.Sections {
		printSection(out, fin, s)
	}

	if *compare {
		review, err := a.Review(ctx, company.CIK, fin.FiscalYear)
		if err != nil {
			fmt.Fprintf(out, "\n⚠️  Comparison unavailable: %v\n", err)
		} else {
			printReview(out, review)
		}
	}

	if *historyYears > 1 {
		history, err := a.History(ctx, company.CIK, fin.FiscalYear, *historyYears)
		if err != nil {
			fmt.Fprintf(out, "\n⚠️  History unavailable: %v\n", err)
		} else {
			printGrowth(out, history)
		}
	}

	if *withPrice {
		if company.Ticker == "" {
			fmt.Fprintln(out, "No ticker on file; skipping price data.")
		} else {
			printPrice(ctx, out, a.Market, company.Ticker)
		}
	}

	if *withNews {
		articles, err := a.News.Search(ctx, company.Name, cfg.News.Results)
		if err != nil {
			fmt.Fprintf(out, "\n⚠️  News unavailable: %v\n", err)
		} else {
			printNews(out, articles)
		}
	}

	if *withAnalysis || *withVerdict {
		if a.Analyst == nil {
			fmt.Fprintln(out, "\n⚠️  AI analysis needs an LLM API key (GEMINI_API_KEY or OPENROUTER_API_KEY).")
			return
		}
	}
	if *withAnalysis {
		analysis, err := a.Analyst.Analyze(ctx, fin)
		if err != nil {
			fmt.Fprintf(out, "\n⚠️  Analysis unavailable: %v\n", err)
		} else {
			fmt.Fprintf(out, "\n=== AI Analysis (%s) ===\n\n%s\n", a.Analyst.Provider(), analysis)
		}
	}
	if *withVerdict {
		v, err := a.Analyst.Verdict(ctx, fin)
		if err != nil {
			fmt.Fprintf(out, "\n⚠️  Verdict unavailable: %v\n", err)
		} else {
			fmt.Fprintf(out, "\n=== Verdict: %s ===\n%s\n", strings.ToUpper(v.Rating), v.Thesis)
			printList(out, "Strengths", v.Strengths)
			printList(out, "Concerns", v.Concerns)
		}
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	os.Exit(1)
}

// resolve accepts a CIK directly, otherwise searches the cached directory.
func resolve(ctx context.Context, a *app.App, query string) (ingest.Company, error) {
	if cik, err := facts.NormalizeCIK(query); err == nil {
		if d, err := a.Directory(ctx, false); err == nil {
			if c, ok := d.ByCIK(cik); ok {
				return c, nil
			}
		}
		return ingest.Company{CIK: cik, Name: "CIK " + cik}, nil
	}

	d, err := a.Directory(ctx, true)
	if err != nil {
		return ingest.Company{}, fmt.Errorf("company directory unavailable: %w", err)
	}
	c, ok := d.Lookup(query)
	if !ok {
		return ingest.Company{}, fmt.Errorf("no company matches %q", query)
	}
	return c, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func printHeader(w io.Writer, c ingest.Company, fin *financial.Financials) {
	name := fin.Company.Name
	if name == "" {
		name = c.Name
	}
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(w, "Company: %s (%s)\n", name, orNA(c.Ticker))
	fmt.Fprintf(w, "CIK:     %s\n", fin.Company.CIK)
	fmt.Fprintf(w, "Fiscal year: %d\n", fin.FiscalYear)
	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 60))
}

func printSection(w io.Writer, fin *financial.Financials, s financial.Section) {
	fmt.Fprintf(w, "\n--- %s ---\n", s.Title())

	rows := fin.Ordered(s)
	available := 0
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		if !row.Available {
			fmt.Fprintf(tw, "%s\tN/A\t\n", row.Label)
			continue
		}
		available++
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Label, row.Formatted, financial.FormatDate(row.Date))
	}
	tw.Flush()

	if available == 0 {
		fmt.Fprintf(w, "No %s data available for %d\n", strings.ToLower(s.Title()), fin.FiscalYear)
	}
}

func printReview(w io.Writer, r *validate.Review) {
	fmt.Fprintf(w, "\n--- FY%d vs FY%d ---\n", r.CurrentYear, r.PriorYear)
	if len(r.Changes) == 0 {
		fmt.Fprintln(w, "No overlapping data for the two years.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range r.Changes {
		change := fmt.Sprintf("%+.2f", c.ChangeAbs)
		if c.HasPct {
			change = fmt.Sprintf("%+.1f%%", c.ChangePct)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Label,
			humanize.Commaf(c.PriorValue), humanize.Commaf(c.CurrentValue), change)
	}
	tw.Flush()

	for _, o := range r.Outliers {
		fmt.Fprintf(w, "⚠️  %s: %s\n", o.Label, o.Reason)
	}
	if b := r.Balance; b != nil && !b.IsBalanced {
		fmt.Fprintf(w, "⚠️  Balance sheet off by %s (assets vs liabilities + equity)\n", humanize.Commaf(b.Difference))
	}
}

func printGrowth(w io.Writer, history []*financial.Financials) {
	fmt.Fprintf(w, "\n--- Growth ---\n")
	for _, label := range []string{"Total Revenue", "Net Sales", "Net Income"} {
		g, err := validate.Growth(history, financial.SectionIncomeStatement, label)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s CAGR FY%d-FY%d: %.2f%%\n", label, g.StartYear, g.EndYear, g.CAGR)
	}
}

func printPrice(ctx context.Context, w io.Writer, m *market.Client, symbol string) {
	fmt.Fprintf(w, "\n--- Stock Price (%s) ---\n", symbol)

	quote, err := m.GlobalQuote(ctx, symbol)
	if errors.Is(err, market.ErrNoAPIKey) {
		fmt.Fprintln(w, "Price data needs ALPHA_VANTAGE_API_KEY.")
		return
	}
	if err != nil {
		fmt.Fprintf(w, "Quote unavailable: %v\n", err)
	} else {
		fmt.Fprintf(w, "Price: $%.2f  %+.2f (%+.2f%%)  as of %s\n",
			quote.Price, quote.Change, quote.ChangePercent, quote.LatestTradingDay)
	}

	series, err := m.DailySeries(ctx, symbol, "full")
	if err != nil {
		fmt.Fprintf(w, "Price history unavailable: %v\n", err)
		return
	}
	if s := series.Summary; s != nil {
		fmt.Fprintf(w, "52-week range: $%.2f - $%.2f\n", s.Low52Week, s.High52Week)
		fmt.Fprintf(w, "Average volume: %s\n", humanize.Comma(int64(s.AverageVolume)))
		fmt.Fprintf(w, "Volatility (annualized): %.2f%%\n", s.Volatility)
	}
}

func printNews(w io.Writer, articles []news.Article) {
	fmt.Fprintf(w, "\n--- Latest News ---\n")
	if len(articles) == 0 {
		fmt.Fprintln(w, "No recent news found.")
		return
	}
	for i, a := range articles {
		fmt.Fprintf(w, "%d. %s\n", i+1, a.Title)
		if a.Source != "" || a.Date != "" {
			fmt.Fprintf(w, "   %s %s\n", a.Source, a.Date)
		}
		if a.Snippet != "" {
			fmt.Fprintf(w, "   %s\n", a.Snippet)
		}
		fmt.Fprintf(w, "   %s\n", a.Link)
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  • %s\n", it)
	}
}
