// Package financial turns a company-facts document into canonical statement
// line items and derived ratios for one target fiscal year.
package financial

import (
	"errors"
	"fmt"
	"os"

	"financial_lookup/pkg/core/facts"

	"gopkg.in/yaml.v2"
)

// ErrConfiguration marks an invalid metric catalogue or extractor setting.
var ErrConfiguration = errors.New("invalid metric catalogue")

// Section names a group of canonical labels in the output.
type Section string

const (
	SectionBalanceSheet    Section = "balance_sheet"
	SectionIncomeStatement Section = "income_statement"
	SectionCashFlow        Section = "cash_flow"
	SectionKeyMetrics      Section = "key_metrics"
)

// Sections lists every section in report order.
var Sections = []Section{SectionKeyMetrics, SectionBalanceSheet, SectionIncomeStatement, SectionCashFlow}

// Title returns the heading used by renderers.
func (s Section) Title() string {
	switch s {
	case SectionBalanceSheet:
		return "Balance Sheet"
	case SectionIncomeStatement:
		return "Income Statement"
	case SectionCashFlow:
		return "Cash Flow"
	case SectionKeyMetrics:
		return "Key Metrics"
	}
	return string(s)
}

// Value formats for catalogue items.
const (
	FormatKindCurrency = "currency"
	FormatKindPerShare = "per_share"
	FormatKindShares   = "shares"
)

// Formula operations.
const (
	OpRatio    = "ratio"      // left / right * scale
	OpNetOfAbs = "net_of_abs" // left - |right|
)

// =============================================================================
// METRIC CATALOGUE
// =============================================================================

// Catalogue maps canonical labels to source concepts (Items) or to formulas
// over other canonical labels (Formulas). It is configuration, loaded once.
type Catalogue struct {
	Namespace       string    `yaml:"namespace"`
	Unit            string    `yaml:"unit"`            // filing currency unit, e.g. "USD"
	CurrencySymbol  string    `yaml:"currency_symbol"` // prefix for formatted amounts
	BalanceSheet    []Item    `yaml:"balance_sheet"`
	IncomeStatement []Item    `yaml:"income_statement"`
	CashFlow        []Item    `yaml:"cash_flow"`
	Derived         []Formula `yaml:"derived"`
}

// Item is a canonical label backed by one source concept.
type Item struct {
	Label   string `yaml:"label"`
	Concept string `yaml:"concept"`
	Unit    string `yaml:"unit,omitempty"`   // overrides Catalogue.Unit (e.g. "USD/shares")
	Format  string `yaml:"format,omitempty"` // currency (default), per_share, shares
}

// Formula is a canonical label computed from two other canonical labels.
type Formula struct {
	Label   string  `yaml:"label"`
	Section Section `yaml:"section"`
	Op      string  `yaml:"op"`
	Left    string  `yaml:"left"`
	Right   string  `yaml:"right"`
	Scale   float64 `yaml:"scale,omitempty"`
	Suffix  string  `yaml:"suffix,omitempty"`
}

// DefaultCatalogue returns the built-in label -> concept table.
func DefaultCatalogue() *Catalogue {
	return &Catalogue{
		Namespace:      facts.NamespaceGAAP,
		Unit:           "USD",
		CurrencySymbol: "$",
		BalanceSheet: []Item{
			{Label: "Total Assets", Concept: "Assets"},
			{Label: "Current Assets", Concept: "AssetsCurrent"},
			{Label: "Cash and Cash Equivalents", Concept: "CashAndCashEquivalentsAtCarryingValue"},
			{Label: "Total Liabilities", Concept: "Liabilities"},
			{Label: "Current Liabilities", Concept: "LiabilitiesCurrent"},
			{Label: "Stockholders Equity", Concept: "StockholdersEquity"},
			{Label: "Property Plant Equipment", Concept: "PropertyPlantAndEquipmentNet"},
		},
		IncomeStatement: []Item{
			{Label: "Total Revenue", Concept: "Revenues"},
			{Label: "Net Sales", Concept: "RevenueFromContractWithCustomerExcludingAssessedTax"},
			{Label: "Cost of Revenue", Concept: "CostOfGoodsAndServicesSold"},
			{Label: "Gross Profit", Concept: "GrossProfit"},
			{Label: "Operating Income", Concept: "OperatingIncomeLoss"},
			{Label: "Net Income", Concept: "NetIncomeLoss"},
			{Label: "Earnings Per Share (Basic)", Concept: "EarningsPerShareBasic", Unit: "USD/shares", Format: FormatKindPerShare},
			{Label: "Earnings Per Share (Diluted)", Concept: "EarningsPerShareDiluted", Unit: "USD/shares", Format: FormatKindPerShare},
		},
		CashFlow: []Item{
			{Label: "Operating Cash Flow", Concept: "NetCashProvidedByUsedInOperatingActivities"},
			{Label: "Investing Cash Flow", Concept: "NetCashProvidedByUsedInInvestingActivities"},
			{Label: "Financing Cash Flow", Concept: "NetCashProvidedByUsedInFinancingActivities"},
			{Label: "Capital Expenditures", Concept: "PaymentsToAcquirePropertyPlantAndEquipment"},
		},
		Derived: []Formula{
			// CapEx is reported with either sign across filers; always subtract its magnitude.
			{Label: "Free Cash Flow", Section: SectionCashFlow, Op: OpNetOfAbs, Left: "Operating Cash Flow", Right: "Capital Expenditures"},
			{Label: "Asset Turnover", Section: SectionKeyMetrics, Op: OpRatio, Left: "Total Revenue", Right: "Total Assets", Scale: 1, Suffix: "x"},
			{Label: "Return on Equity", Section: SectionKeyMetrics, Op: OpRatio, Left: "Net Income", Right: "Stockholders Equity", Scale: 100, Suffix: "%"},
			{Label: "Return on Assets", Section: SectionKeyMetrics, Op: OpRatio, Left: "Net Income", Right: "Total Assets", Scale: 100, Suffix: "%"},
			{Label: "Net Profit Margin", Section: SectionKeyMetrics, Op: OpRatio, Left: "Net Income", Right: "Total Revenue", Scale: 100, Suffix: "%"},
		},
	}
}

// LoadCatalogue reads a YAML catalogue. Empty top-level settings fall back to the
// defaults; the statement lists are taken as given. The result is validated.
func LoadCatalogue(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue %s: %w", path, err)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue decodes and validates a YAML catalogue.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var cat Catalogue
	if err := yaml.UnmarshalStrict(data, &cat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	def := DefaultCatalogue()
	if cat.Namespace == "" {
		cat.Namespace = def.Namespace
	}
	if cat.Unit == "" {
		cat.Unit = def.Unit
	}
	if cat.CurrencySymbol == "" {
		cat.CurrencySymbol = def.CurrencySymbol
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Items returns the concept-backed items of a section.
func (c *Catalogue) Items(section Section) []Item {
	switch section {
	case SectionBalanceSheet:
		return c.BalanceSheet
	case SectionIncomeStatement:
		return c.IncomeStatement
	case SectionCashFlow:
		return c.CashFlow
	}
	return nil
}

// Formulas returns the derived entries of a section, in catalogue order.
func (c *Catalogue) Formulas(section Section) []Formula {
	var out []Formula
	for _, f := range c.Derived {
		if f.Section == section {
			out = append(out, f)
		}
	}
	return out
}

// Labels returns every label of a section in display order: items first, then formulas.
func (c *Catalogue) Labels(section Section) []string {
	var labels []string
	for _, it := range c.Items(section) {
		labels = append(labels, it.Label)
	}
	for _, f := range c.Formulas(section) {
		labels = append(labels, f.Label)
	}
	return labels
}

// item finds a concept-backed label in any section.
func (c *Catalogue) item(label string) (Item, bool) {
	for _, section := range []Section{SectionBalanceSheet, SectionIncomeStatement, SectionCashFlow} {
		for _, it := range c.Items(section) {
			if it.Label == label {
				return it, true
			}
		}
	}
	return Item{}, false
}

// unitFor returns the unit an item is read in.
func (c *Catalogue) unitFor(it Item) string {
	if it.Unit != "" {
		return it.Unit
	}
	return c.Unit
}

// Validate checks the catalogue once, before any extraction.
func (c *Catalogue) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil catalogue", ErrConfiguration)
	}
	if c.Namespace == "" {
		return fmt.Errorf("%w: namespace is required", ErrConfiguration)
	}
	if c.Unit == "" {
		return fmt.Errorf("%w: unit is required", ErrConfiguration)
	}

	seen := make(map[string]bool)
	for _, section := range []Section{SectionBalanceSheet, SectionIncomeStatement, SectionCashFlow} {
		for _, it := range c.Items(section) {
			if it.Label == "" {
				return fmt.Errorf("%w: %s has an item without a label", ErrConfiguration, section)
			}
			if it.Concept == "" {
				return fmt.Errorf("%w: label %q has no concept and no formula", ErrConfiguration, it.Label)
			}
			if seen[it.Label] {
				return fmt.Errorf("%w: duplicate label %q", ErrConfiguration, it.Label)
			}
			switch it.Format {
			case "", FormatKindCurrency, FormatKindPerShare, FormatKindShares:
			default:
				return fmt.Errorf("%w: label %q has unknown format %q", ErrConfiguration, it.Label, it.Format)
			}
			seen[it.Label] = true
		}
	}

	for _, f := range c.Derived {
		if f.Label == "" {
			return fmt.Errorf("%w: formula without a label", ErrConfiguration)
		}
		if seen[f.Label] {
			return fmt.Errorf("%w: duplicate label %q", ErrConfiguration, f.Label)
		}
		switch f.Section {
		case SectionBalanceSheet, SectionIncomeStatement, SectionCashFlow, SectionKeyMetrics:
		default:
			return fmt.Errorf("%w: formula %q has unknown section %q", ErrConfiguration, f.Label, f.Section)
		}
		switch f.Op {
		case OpRatio, OpNetOfAbs:
		default:
			return fmt.Errorf("%w: formula %q has unknown op %q", ErrConfiguration, f.Label, f.Op)
		}
		if f.Scale < 0 {
			return fmt.Errorf("%w: formula %q has negative scale", ErrConfiguration, f.Label)
		}
		for _, operand := range []string{f.Left, f.Right} {
			if operand == "" {
				return fmt.Errorf("%w: formula %q is missing an operand", ErrConfiguration, f.Label)
			}
			if _, ok := c.item(operand); !ok {
				return fmt.Errorf("%w: formula %q references unknown label %q", ErrConfiguration, f.Label, operand)
			}
		}
		seen[f.Label] = true
	}

	return nil
}
