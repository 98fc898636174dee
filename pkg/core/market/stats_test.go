package market

import (
	"math"
	"testing"
)

func closes(vals ...float64) []PricePoint {
	out := make([]PricePoint, len(vals))
	for i, v := range vals {
		out[i] = PricePoint{Close: v, Volume: int64(100 * (i + 1))}
	}
	return out
}

func TestChange(t *testing.T) {
	tests := []struct {
		name   string
		prices []PricePoint
		want   PriceChange
	}{
		{"up", closes(100, 110), PriceChange{Amount: 10, Percentage: 10, IsPositive: true}},
		{"down", closes(200, 150), PriceChange{Amount: -50, Percentage: -25, IsPositive: false}},
		{"flat", closes(50, 50), PriceChange{Amount: 0, Percentage: 0, IsPositive: true}},
		{"single", closes(50), PriceChange{}},
		{"zero previous", closes(0, 5), PriceChange{Amount: 5, IsPositive: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Change(tt.prices); got != tt.want {
				t.Errorf("Change = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	if Summarize(nil) != nil {
		t.Error("empty window should summarize to nil")
	}

	s := Summarize(closes(10, 12, 9, 11))
	if s.High52Week != 12 || s.Low52Week != 9 {
		t.Errorf("high/low = %v/%v", s.High52Week, s.Low52Week)
	}
	if s.AverageVolume != 250 {
		t.Errorf("AverageVolume = %v", s.AverageVolume)
	}
}

func TestVolatility(t *testing.T) {
	if v := Volatility([]float64{100}); v != 0 {
		t.Errorf("single point = %v", v)
	}
	if v := Volatility([]float64{100, 100, 100}); v != 0 {
		t.Errorf("flat series = %v", v)
	}

	// returns +10% and -10%: population stddev 0.1
	got := Volatility([]float64{100, 110, 99})
	want := 0.1 * math.Sqrt(252) * 100
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Volatility = %v, want %v", got, want)
	}
}
