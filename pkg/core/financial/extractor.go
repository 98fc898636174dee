package financial

import (
	"errors"
	"fmt"
	"math"
	"time"

	"financial_lookup/pkg/core/facts"
)

const isoDate = "2006-01-02"

// ErrMetricUnavailable marks a label or ratio that cannot be resolved for the
// target period. Statement extraction reports it as omission, never as an error.
var ErrMetricUnavailable = errors.New("metric unavailable")

// Metric is one resolved canonical line item.
type Metric struct {
	Value     float64 `json:"value"`
	Date      string  `json:"date"`
	Formatted string  `json:"formatted"`
}

// Statement maps canonical label -> Metric. Unresolved labels have no entry.
type Statement map[string]Metric

// =============================================================================
// SELECTION POLICY
// =============================================================================

// Qualifies reports whether an observation belongs to the target year. Filings
// populate fy and end inconsistently, so either one matching is enough.
func Qualifies(o facts.Observation, year int) bool {
	if o.Year() == year {
		return true
	}
	return endYear(o.End) == year
}

// SelectLatest picks the qualifying observation with the latest end date.
// When several share that end date (restatements), the last-listed one wins.
func SelectLatest(observations []facts.Observation, year int) (facts.Observation, bool) {
	var (
		best    facts.Observation
		bestEnd time.Time
		found   bool
	)

	for _, o := range observations {
		if !Qualifies(o, year) {
			continue
		}
		end := parseEnd(o.End)
		if !found || !end.Before(bestEnd) {
			best, bestEnd, found = o, end, true
		}
	}

	return best, found
}

// parseEnd returns the zero time for missing or invalid dates, which sorts
// such observations behind every dated one.
func parseEnd(date string) time.Time {
	t, err := time.Parse(isoDate, date)
	if err != nil {
		return time.Time{}
	}
	return t
}

func endYear(date string) int {
	t := parseEnd(date)
	if t.IsZero() {
		return 0
	}
	return t.Year()
}

// =============================================================================
// EXTRACTOR
// =============================================================================

// Extractor resolves a catalogue against fact documents for one fiscal year.
// It holds no per-document state and is safe for concurrent use.
type Extractor struct {
	catalogue  *Catalogue
	fiscalYear int
}

// NewExtractor validates the catalogue and the target year.
func NewExtractor(cat *Catalogue, fiscalYear int) (*Extractor, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	if fiscalYear < 1000 || fiscalYear > 9999 {
		return nil, fmt.Errorf("%w: fiscal year %d is not a 4-digit year", ErrConfiguration, fiscalYear)
	}
	return &Extractor{catalogue: cat, fiscalYear: fiscalYear}, nil
}

// FiscalYear returns the target year.
func (e *Extractor) FiscalYear() int {
	return e.fiscalYear
}

// Catalogue returns the catalogue the extractor was built with.
func (e *Extractor) Catalogue() *Catalogue {
	return e.catalogue
}

// pass carries one extraction call over one document.
type pass struct {
	e        *Extractor
	store    *facts.Store
	resolved map[string]*facts.Observation
}

func (e *Extractor) newPass(doc *facts.Document) (*pass, error) {
	store, err := facts.NewStore(doc, e.catalogue.Namespace)
	if err != nil {
		return nil, err
	}
	return &pass{e: e, store: store, resolved: make(map[string]*facts.Observation)}, nil
}

// resolve applies the selection policy to the concept behind a label. Results
// (including misses) are memoized for the pass.
func (p *pass) resolve(label string) (facts.Observation, bool) {
	if o, ok := p.resolved[label]; ok {
		if o == nil {
			return facts.Observation{}, false
		}
		return *o, true
	}

	it, ok := p.e.catalogue.item(label)
	if !ok {
		p.resolved[label] = nil
		return facts.Observation{}, false
	}

	o, found := SelectLatest(p.store.Observations(it.Concept, p.e.catalogue.unitFor(it)), p.e.fiscalYear)
	if !found {
		p.resolved[label] = nil
		return facts.Observation{}, false
	}
	p.resolved[label] = &o
	return o, true
}

// section extracts the items and formulas of one section.
func (p *pass) section(section Section) Statement {
	cat := p.e.catalogue
	out := make(Statement)

	for _, it := range cat.Items(section) {
		o, ok := p.resolve(it.Label)
		if !ok {
			continue
		}
		out[it.Label] = Metric{
			Value:     o.Value,
			Date:      o.End,
			Formatted: cat.formatItem(it, o.Value),
		}
	}

	for _, f := range cat.Formulas(section) {
		m, err := p.formula(f)
		if err != nil {
			continue
		}
		out[f.Label] = m
	}

	return out
}

// formula evaluates a derived label from raw operand values. Any missing
// operand or zero denominator yields ErrMetricUnavailable.
func (p *pass) formula(f Formula) (Metric, error) {
	left, ok := p.resolve(f.Left)
	if !ok {
		return Metric{}, fmt.Errorf("%w: %s needs %s", ErrMetricUnavailable, f.Label, f.Left)
	}
	right, ok := p.resolve(f.Right)
	if !ok {
		return Metric{}, fmt.Errorf("%w: %s needs %s", ErrMetricUnavailable, f.Label, f.Right)
	}

	var value float64
	switch f.Op {
	case OpNetOfAbs:
		value = left.Value - math.Abs(right.Value)
	case OpRatio:
		scale := f.Scale
		if scale == 0 {
			scale = 1
		}
		v, err := Ratio(left.Value, right.Value, scale)
		if err != nil {
			return Metric{}, fmt.Errorf("%s: %w", f.Label, err)
		}
		value = v
	default:
		return Metric{}, fmt.Errorf("%w: unknown op %q", ErrConfiguration, f.Op)
	}

	return Metric{
		Value:     value,
		Date:      left.End,
		Formatted: p.e.catalogue.formatFormula(f, value),
	}, nil
}

// Ratio returns num/den*scale, or ErrMetricUnavailable when den is zero or the
// result is not finite.
func Ratio(num, den, scale float64) (float64, error) {
	if den == 0 {
		return 0, fmt.Errorf("%w: zero denominator", ErrMetricUnavailable)
	}
	v := num / den * scale
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite result", ErrMetricUnavailable)
	}
	return v, nil
}

// =============================================================================
// STATEMENT EXTRACTION
// =============================================================================

// Extract returns one section of the document. It fails only when the document
// is malformed.
func (e *Extractor) Extract(doc *facts.Document, section Section) (Statement, error) {
	p, err := e.newPass(doc)
	if err != nil {
		return nil, err
	}
	return p.section(section), nil
}

// ExtractBalanceSheet resolves the balance sheet labels.
func (e *Extractor) ExtractBalanceSheet(doc *facts.Document) (Statement, error) {
	return e.Extract(doc, SectionBalanceSheet)
}

// ExtractIncomeStatement resolves the income statement labels.
func (e *Extractor) ExtractIncomeStatement(doc *facts.Document) (Statement, error) {
	return e.Extract(doc, SectionIncomeStatement)
}

// ExtractCashFlow resolves the cash flow labels, including Free Cash Flow.
func (e *Extractor) ExtractCashFlow(doc *facts.Document) (Statement, error) {
	return e.Extract(doc, SectionCashFlow)
}

// ExtractKeyMetrics computes the derived ratios. Each operand is resolved
// independently, so operands may come from different end dates.
func (e *Extractor) ExtractKeyMetrics(doc *facts.Document) (Statement, error) {
	return e.Extract(doc, SectionKeyMetrics)
}

// =============================================================================
// DEFAULT-CATALOGUE CONVENIENCE
// =============================================================================

func defaultExtractor(fiscalYear int) (*Extractor, error) {
	return NewExtractor(DefaultCatalogue(), fiscalYear)
}

// ExtractBalanceSheet uses the default catalogue.
func ExtractBalanceSheet(doc *facts.Document, fiscalYear int) (Statement, error) {
	e, err := defaultExtractor(fiscalYear)
	if err != nil {
		return nil, err
	}
	return e.ExtractBalanceSheet(doc)
}

// ExtractIncomeStatement uses the default catalogue.
func ExtractIncomeStatement(doc *facts.Document, fiscalYear int) (Statement, error) {
	e, err := defaultExtractor(fiscalYear)
	if err != nil {
		return nil, err
	}
	return e.ExtractIncomeStatement(doc)
}

// ExtractCashFlow uses the default catalogue.
func ExtractCashFlow(doc *facts.Document, fiscalYear int) (Statement, error) {
	e, err := defaultExtractor(fiscalYear)
	if err != nil {
		return nil, err
	}
	return e.ExtractCashFlow(doc)
}

// ExtractKeyMetrics uses the default catalogue.
func ExtractKeyMetrics(doc *facts.Document, fiscalYear int) (Statement, error) {
	e, err := defaultExtractor(fiscalYear)
	if err != nil {
		return nil, err
	}
	return e.ExtractKeyMetrics(doc)
}
