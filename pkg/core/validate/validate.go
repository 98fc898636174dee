// Package validate compares extracted financials across fiscal years and
// checks them for internal consistency.
package validate

import (
	"fmt"
	"math"
	"sort"

	"financial_lookup/pkg/core/financial"
)

// Labels the consistency checks read from the default catalogue.
const (
	LabelTotalAssets      = "Total Assets"
	LabelTotalLiabilities = "Total Liabilities"
	LabelEquity           = "Stockholders Equity"
)

// =============================================================================
// YEAR-OVER-YEAR (YoY) CALCULATIONS
// =============================================================================

// YoYResult holds the change of one label between two fiscal years.
type YoYResult struct {
	Section      financial.Section `json:"section"`
	Label        string            `json:"label"`
	CurrentYear  int               `json:"current_year"`
	PriorYear    int               `json:"prior_year"`
	CurrentValue float64           `json:"current_value"`
	PriorValue   float64           `json:"prior_value"`
	ChangeAbs    float64           `json:"change_abs"`
	ChangePct    float64           `json:"change_pct"`
	HasPct       bool              `json:"has_pct"` // false when the prior value is zero
}

// CalculateYoY returns (current - prior) / |prior| * 100. ok is false when
// prior is zero.
func CalculateYoY(current, prior float64) (pct float64, ok bool) {
	if prior == 0 {
		return 0, false
	}
	return (current - prior) / math.Abs(prior) * 100, true
}

// Compare lists every statement label resolved in both years, in catalogue
// order. Key metrics are ratios and are compared as plain differences.
func Compare(current, prior *financial.Financials) []YoYResult {
	var out []YoYResult
	for _, s := range financial.Sections {
		priorStmt := prior.Statement(s)
		for _, row := range current.Ordered(s) {
			if !row.Available {
				continue
			}
			p, ok := priorStmt[row.Label]
			if !ok {
				continue
			}
			r := YoYResult{
				Section:      s,
				Label:        row.Label,
				CurrentYear:  current.FiscalYear,
				PriorYear:    prior.FiscalYear,
				CurrentValue: row.Value,
				PriorValue:   p.Value,
				ChangeAbs:    row.Value - p.Value,
			}
			if s != financial.SectionKeyMetrics {
				r.ChangePct, r.HasPct = CalculateYoY(row.Value, p.Value)
			}
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// CAGR (Compound Annual Growth Rate)
// =============================================================================

// CAGRResult holds the growth of one label across a span of years.
type CAGRResult struct {
	Label      string  `json:"label"`
	StartYear  int     `json:"start_year"`
	EndYear    int     `json:"end_year"`
	StartValue float64 `json:"start_value"`
	EndValue   float64 `json:"end_value"`
	Years      int     `json:"years"`
	CAGR       float64 `json:"cagr"` // percent
}

// CalculateCAGR returns ((end / start) ^ (1/years) - 1) * 100, or 0 when
// start is not positive or years is not positive.
func CalculateCAGR(startValue, endValue float64, years int) float64 {
	if startValue <= 0 || years <= 0 {
		return 0
	}
	return (math.Pow(endValue/startValue, 1.0/float64(years)) - 1) * 100
}

// Growth computes the CAGR of label between the earliest and latest years in
// history that resolved it. history may be in any order.
func Growth(history []*financial.Financials, section financial.Section, label string) (*CAGRResult, error) {
	type point struct {
		year  int
		value float64
	}
	var points []point
	for _, fin := range history {
		if m, ok := fin.Statement(section)[label]; ok {
			points = append(points, point{fin.FiscalYear, m.Value})
		}
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%s: need two years of data, have %d", label, len(points))
	}
	sort.Slice(points, func(i, j int) bool { return points[i].year < points[j].year })

	start, end := points[0], points[len(points)-1]
	years := end.year - start.year
	if start.value <= 0 {
		return nil, fmt.Errorf("%s: starting value %.0f is not positive", label, start.value)
	}
	return &CAGRResult{
		Label:      label,
		StartYear:  start.year,
		EndYear:    end.year,
		StartValue: start.value,
		EndValue:   end.value,
		Years:      years,
		CAGR:       CalculateCAGR(start.value, end.value, years),
	}, nil
}

// =============================================================================
// BALANCE SHEET EQUATION
// =============================================================================

// BalanceCheck verifies Assets = Liabilities + Equity.
type BalanceCheck struct {
	TotalAssets      float64 `json:"total_assets"`
	TotalLiabilities float64 `json:"total_liabilities"`
	TotalEquity      float64 `json:"total_equity"`
	Difference       float64 `json:"difference"`
	IsBalanced       bool    `json:"is_balanced"`
	TolerancePct     float64 `json:"tolerance_pct"`
}

// CheckBalance validates A = L + E within tolerancePct of assets. Equity
// excludes noncontrolling interests, so a small gap is normal for some filers.
// ok is false when any of the three labels is missing.
func CheckBalance(fin *financial.Financials, tolerancePct float64) (check *BalanceCheck, ok bool) {
	bs := fin.BalanceSheet
	assets, okA := bs[LabelTotalAssets]
	liabilities, okL := bs[LabelTotalLiabilities]
	equity, okE := bs[LabelEquity]
	if !okA || !okL || !okE {
		return nil, false
	}

	diff := assets.Value - (liabilities.Value + equity.Value)
	return &BalanceCheck{
		TotalAssets:      assets.Value,
		TotalLiabilities: liabilities.Value,
		TotalEquity:      equity.Value,
		Difference:       diff,
		IsBalanced:       math.Abs(diff) <= math.Abs(assets.Value)*tolerancePct/100,
		TolerancePct:     tolerancePct,
	}, true
}

// =============================================================================
// OUTLIER DETECTION
// =============================================================================

// OutlierCheck flags a suspicious year-over-year move.
type OutlierCheck struct {
	Label      string  `json:"label"`
	Value      float64 `json:"value"`
	PriorValue float64 `json:"prior_value"`
	ChangePct  float64 `json:"change_pct"`
	Reason     string  `json:"reason"`
}

// FindOutliers returns the statement changes larger than thresholdPct, and
// values that dropped to zero from a positive prior.
func FindOutliers(changes []YoYResult, thresholdPct float64) []OutlierCheck {
	var out []OutlierCheck
	for _, c := range changes {
		if c.Section == financial.SectionKeyMetrics {
			continue
		}
		check := OutlierCheck{Label: c.Label, Value: c.CurrentValue, PriorValue: c.PriorValue, ChangePct: c.ChangePct}
		switch {
		case c.CurrentValue == 0 && c.PriorValue > 0:
			check.Reason = "Value dropped to zero (likely missing filing data)"
		case c.HasPct && math.Abs(c.ChangePct) > thresholdPct:
			check.Reason = fmt.Sprintf("Change of %.1f%% exceeds threshold of %.1f%%", c.ChangePct, thresholdPct)
		default:
			continue
		}
		out = append(out, check)
	}
	return out
}

// =============================================================================
// SUMMARY
// =============================================================================

// DefaultOutlierThreshold is the YoY move, in percent, that FindOutliers flags
// in Review.
const DefaultOutlierThreshold = 50.0

// Review bundles the checks for one fiscal year against the year before.
type Review struct {
	CurrentYear int            `json:"current_year"`
	PriorYear   int            `json:"prior_year"`
	Changes     []YoYResult    `json:"changes"`
	Outliers    []OutlierCheck `json:"outliers"`
	Balance     *BalanceCheck  `json:"balance,omitempty"`
}

// NewReview compares current with prior and runs every check.
func NewReview(current, prior *financial.Financials) *Review {
	changes := Compare(current, prior)
	r := &Review{
		CurrentYear: current.FiscalYear,
		PriorYear:   prior.FiscalYear,
		Changes:     changes,
		Outliers:    FindOutliers(changes, DefaultOutlierThreshold),
	}
	if b, ok := CheckBalance(current, 1); ok {
		r.Balance = b
	}
	return r
}
