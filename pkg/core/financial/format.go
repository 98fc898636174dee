package financial

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// =============================================================================
// DISPLAY FORMATTING
// Pure functions of the value; no locale state.
// =============================================================================

var scales = []struct {
	threshold float64
	suffix    string
}{
	{1e12, "T"},
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// scaled renders |v| with the largest T/B/M/K suffix it reaches, or grouped
// digits. Rounding to cents happens first so 999999.996 reads "1.00M".
func scaled(v float64) string {
	abs := cents(math.Abs(v))
	for i, s := range scales {
		if abs < s.threshold {
			continue
		}
		q := cents(abs / s.threshold)
		if q >= 1000 && i > 0 {
			i--
			q = cents(abs / scales[i].threshold)
		}
		return fmt.Sprintf("%.2f%s", q, scales[i].suffix)
	}
	return humanize.FormatFloat("#,###.##", abs)
}

func cents(v float64) float64 { return math.Round(v*100) / 100 }

func sign(v float64) string {
	if v < 0 {
		return "-"
	}
	return ""
}

// FormatCurrency renders an amount like "$1.50T", "$2.50M", "$999.00" or "$-1.50K".
func FormatCurrency(v float64, symbol string) string {
	return symbol + sign(v) + scaled(v)
}

// FormatPerShare renders a per-share amount without scaling, e.g. "$6.11".
func FormatPerShare(v float64, symbol string) string {
	return symbol + sign(v) + humanize.FormatFloat("#,###.##", math.Abs(v))
}

// FormatShares renders a share count, e.g. "15.12B shares".
func FormatShares(v float64) string {
	return sign(v) + scaled(v) + " shares"
}

// FormatRatio renders a multiple, e.g. "1.07x".
func FormatRatio(v float64) string {
	return fmt.Sprintf("%.2fx", v)
}

// FormatPercent renders a percentage that is already scaled by 100, e.g. "25.00%".
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// FormatDate renders an ISO date as "Sep 28, 2024". Empty input is "N/A";
// unparseable input is returned unchanged.
func FormatDate(date string) string {
	if date == "" {
		return "N/A"
	}
	t, err := time.Parse(isoDate, date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2, 2006")
}

// formatItem applies an item's configured format.
func (c *Catalogue) formatItem(it Item, v float64) string {
	switch it.Format {
	case FormatKindPerShare:
		return FormatPerShare(v, c.CurrencySymbol)
	case FormatKindShares:
		return FormatShares(v)
	}
	return FormatCurrency(v, c.CurrencySymbol)
}

// formatFormula renders a derived value with the formula's suffix.
func (c *Catalogue) formatFormula(f Formula, v float64) string {
	switch f.Op {
	case OpNetOfAbs:
		return FormatCurrency(v, c.CurrencySymbol)
	}
	return fmt.Sprintf("%.2f%s", v, f.Suffix)
}
