package financial

import (
	"sort"

	"financial_lookup/pkg/core/facts"
)

// Company identifies the reporting entity.
type Company struct {
	Name string `json:"name"`
	CIK  string `json:"cik"`
}

// Financials is the full extraction result for one document and fiscal year.
type Financials struct {
	Company         Company   `json:"company"`
	FiscalYear      int       `json:"fiscal_year"`
	BalanceSheet    Statement `json:"balance_sheet"`
	IncomeStatement Statement `json:"income_statement"`
	CashFlow        Statement `json:"cash_flow"`
	KeyMetrics      Statement `json:"key_metrics"`

	catalogue *Catalogue
}

// LabeledMetric is a Metric in display order. Available is false for labels the
// document did not resolve; renderers show those as "N/A".
type LabeledMetric struct {
	Label     string
	Available bool
	Metric
}

// Process extracts every section from a single document view.
func (e *Extractor) Process(doc *facts.Document) (*Financials, error) {
	p, err := e.newPass(doc)
	if err != nil {
		return nil, err
	}

	return &Financials{
		Company: Company{
			Name: doc.EntityName,
			CIK:  doc.CIK,
		},
		FiscalYear:      e.fiscalYear,
		BalanceSheet:    p.section(SectionBalanceSheet),
		IncomeStatement: p.section(SectionIncomeStatement),
		CashFlow:        p.section(SectionCashFlow),
		KeyMetrics:      p.section(SectionKeyMetrics),
		catalogue:       e.catalogue,
	}, nil
}

// Statement returns the map for a section.
func (f *Financials) Statement(section Section) Statement {
	switch section {
	case SectionBalanceSheet:
		return f.BalanceSheet
	case SectionIncomeStatement:
		return f.IncomeStatement
	case SectionCashFlow:
		return f.CashFlow
	case SectionKeyMetrics:
		return f.KeyMetrics
	}
	return nil
}

// Ordered lists a section in catalogue order, including unavailable labels.
// Without a catalogue (e.g. after JSON decoding) it lists present labels sorted.
func (f *Financials) Ordered(section Section) []LabeledMetric {
	stmt := f.Statement(section)

	var labels []string
	if f.catalogue != nil {
		labels = f.catalogue.Labels(section)
	} else {
		for label := range stmt {
			labels = append(labels, label)
		}
		sort.Strings(labels)
	}

	out := make([]LabeledMetric, 0, len(labels))
	for _, label := range labels {
		m, ok := stmt[label]
		out = append(out, LabeledMetric{Label: label, Available: ok, Metric: m})
	}
	return out
}

// Empty reports whether nothing at all resolved for the fiscal year.
func (f *Financials) Empty() bool {
	return len(f.BalanceSheet) == 0 && len(f.IncomeStatement) == 0 &&
		len(f.CashFlow) == 0 && len(f.KeyMetrics) == 0
}
