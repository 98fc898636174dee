package market

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PriceChange is the move between the last two closes.
type PriceChange struct {
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
	IsPositive bool    `json:"is_positive"`
}

// Summary describes a price window.
type Summary struct {
	High52Week    float64 `json:"high_52_week"`
	Low52Week     float64 `json:"low_52_week"`
	AverageVolume float64 `json:"average_volume"`
	Volatility    float64 `json:"volatility"` // annualized, percent
}

// Change compares the last close with the one before it.
func Change(prices []PricePoint) PriceChange {
	n := len(prices)
	if n < 2 {
		return PriceChange{}
	}
	latest, previous := prices[n-1].Close, prices[n-2].Close
	amount := latest - previous

	pc := PriceChange{Amount: amount, IsPositive: amount >= 0}
	if previous != 0 {
		pc.Percentage = amount / previous * 100
	}
	return pc
}

// Summarize computes the high, low, average volume and volatility of prices.
// It returns nil for an empty window.
func Summarize(prices []PricePoint) *Summary {
	if len(prices) == 0 {
		return nil
	}

	closes := make([]float64, len(prices))
	volumes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
		volumes[i] = float64(p.Volume)
	}

	return &Summary{
		High52Week:    floats.Max(closes),
		Low52Week:     floats.Min(closes),
		AverageVolume: stat.Mean(volumes, nil),
		Volatility:    Volatility(closes),
	}
}

// Volatility is the annualized population standard deviation of daily
// returns, in percent.
func Volatility(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) == 0 {
		return 0
	}

	_, variance := stat.PopMeanVariance(returns, nil)
	return math.Sqrt(variance) * math.Sqrt(TradingDays) * 100
}
