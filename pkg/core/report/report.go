// Package report assembles extracted financials, market data, news and the
// analyst write-up into a single HTML page.
package report

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"strings"
	"time"

	"financial_lookup/pkg/core/financial"
	"financial_lookup/pkg/core/market"
	"financial_lookup/pkg/core/news"
	"financial_lookup/pkg/core/utils"

	"github.com/google/uuid"
)

// NotAvailable is printed for labels that resolved to nothing.
const NotAvailable = "N/A"

// Row is one rendered line item.
type Row struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	Date      string `json:"date"`
	Available bool   `json:"available"`
	Outflow   bool   `json:"outflow,omitempty"`
}

// Section is a titled group of rows. Empty sections keep their title so the
// page shows the gap rather than hiding it.
type Section struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
	Empty bool   `json:"empty"`
}

// Report is everything the page template needs.
type Report struct {
	ID          string            `json:"id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Company     financial.Company `json:"company"`
	Ticker      string            `json:"ticker,omitempty"`
	FiscalYear  int               `json:"fiscal_year"`
	Sections    []Section         `json:"sections"`
	Quote       *market.Quote     `json:"quote,omitempty"`
	Articles    []news.Article    `json:"articles,omitempty"`
	Analysis    string            `json:"analysis,omitempty"` // markdown

	analysisHTML template.HTML
}

// Build assembles a report. quote, articles and analysis are optional.
func Build(fin *financial.Financials, quote *market.Quote, articles []news.Article, analysis string) *Report {
	r := &Report{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Company:     fin.Company,
		FiscalYear:  fin.FiscalYear,
		Quote:       quote,
		Articles:    articles,
		Analysis:    analysis,
	}
	if quote != nil {
		r.Ticker = quote.Symbol
	}

	for _, s := range financial.Sections {
		r.Sections = append(r.Sections, buildSection(fin, s))
	}

	if analysis != "" {
		html, err := utils.MarkdownToHTML(analysis)
		if err != nil {
			log.Printf("[REPORT] markdown render failed, using plain text: %v", err)
			html = "<pre>" + template.HTMLEscapeString(analysis) + "</pre>"
		}
		r.analysisHTML = template.HTML(html)
	}
	return r
}

func buildSection(fin *financial.Financials, s financial.Section) Section {
	sec := Section{Key: string(s), Title: s.Title(), Empty: true}
	for _, lm := range fin.Ordered(s) {
		row := Row{Label: lm.Label, Value: NotAvailable, Date: "No data available"}
		if lm.Available {
			row.Value = lm.Formatted
			row.Date = financial.FormatDate(lm.Date)
			row.Available = true
			sec.Empty = false
			if s == financial.SectionCashFlow {
				row.Outflow = isOutflow(lm.Label, lm.Value)
			}
		}
		sec.Rows = append(sec.Rows, row)
	}
	return sec
}

// isOutflow marks capital spending and negative non-operating cash flows.
func isOutflow(label string, value float64) bool {
	if strings.Contains(label, "Capital Expenditures") {
		return true
	}
	return value < 0 && !strings.Contains(label, "Operating")
}

// AnalysisHTML returns the analyst markdown rendered to HTML.
func (r *Report) AnalysisHTML() template.HTML {
	return r.analysisHTML
}

// Render writes the report page.
func Render(w io.Writer, r *Report) error {
	if err := pageTemplate.Execute(w, r); err != nil {
		return fmt.Errorf("failed to render report %s: %w", r.ID, err)
	}
	return nil
}

var funcs = template.FuncMap{
	"signed": func(v float64) string { return fmt.Sprintf("%+.2f", v) },
	"money":  func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"lower":  strings.ToLower,
}

var pageTemplate = template.Must(template.New("report").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Company.Name}} - {{.FiscalYear}} Financial Report</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;background:#0d1117;color:#e1e4e8;padding:2rem}
.report-header{margin-bottom:2rem}
.company-title{font-size:2rem;color:#f0f6fc}
.report-subtitle{color:#8b949e}
.financial-section{background:#161b22;border:1px solid #30363d;border-radius:12px;padding:1.5rem;margin-bottom:1.5rem}
.section-title{font-size:1.2rem;margin-bottom:1rem;color:#f0f6fc}
.financial-table{width:100%;border-collapse:collapse}
.financial-table td,.financial-table th{padding:.5rem;border-bottom:1px solid #30363d;text-align:left}
.metric-value.negative,.change.down{color:#f85149}
.change.up{color:#3fb950}
.metric-value.na,.metric-date,.empty{color:#8b949e}
.news-item{margin-bottom:1rem}
.news-item a{color:#58a6ff;text-decoration:none}
.analysis h2,.analysis h3{margin:1rem 0 .5rem}
.analysis p,.analysis li{line-height:1.5}
</style>
</head>
<body>
<div class="report-header" data-report-id="{{.ID}}">
<h1 class="company-title">{{.Company.Name}}</h1>
<p class="report-subtitle">{{.FiscalYear}} Financial Report | CIK: {{.Company.CIK}}{{if .Ticker}} | {{.Ticker}}{{end}}</p>
</div>
{{with .Quote}}
<div class="financial-section quote">
<h2 class="section-title">Stock Price</h2>
<p><span class="price">{{money .Price}}</span>
<span class="change {{if lt .Change 0.0}}down{{else}}up{{end}}">{{signed .Change}} ({{signed .ChangePercent}}%)</span></p>
<p class="metric-date">Latest trading day: {{.LatestTradingDay}}</p>
</div>
{{end}}
{{range .Sections}}
<div class="financial-section" id="{{.Key}}">
<h2 class="section-title">{{.Title}}</h2>
{{if .Empty}}<p class="empty">No {{lower .Title}} data available for {{$.FiscalYear}}</p>{{end}}
<table class="financial-table">
<thead><tr><th>Metric</th><th>Amount ({{$.FiscalYear}})</th><th>Date</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td class="metric-label">{{.Label}}</td>
<td class="metric-value{{if not .Available}} na{{end}}{{if .Outflow}} negative{{end}}">{{.Value}}</td>
<td class="metric-date">{{.Date}}</td>
</tr>
{{end}}</tbody>
</table>
</div>
{{end}}
{{if .Articles}}
<div class="financial-section news">
<h2 class="section-title">Latest News</h2>
{{range .Articles}}<div class="news-item">
<a href="{{.Link}}" target="_blank" rel="noopener">{{.Title}}</a>
<p>{{.Snippet}}</p>
<p class="metric-date">{{.Source}}{{if .Date}} · {{.Date}}{{end}}</p>
</div>
{{end}}</div>
{{end}}
{{if .Analysis}}
<div class="financial-section analysis">
<h2 class="section-title">AI Analysis</h2>
{{.AnalysisHTML}}
</div>
{{end}}
<p class="metric-date">Generated {{.GeneratedAt.Format "Jan 2, 2006 15:04 MST"}} · Source: SEC EDGAR</p>
</body>
</html>`))
