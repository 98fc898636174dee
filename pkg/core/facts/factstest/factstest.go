// Package factstest provides companyfacts fixtures for tests.
package factstest

import (
	"encoding/json"

	"financial_lookup/pkg/core/facts"
)

// Obs builds a 10-K observation. fy 0 leaves the fiscal year unset.
func Obs(val float64, fy int, end string) facts.Observation {
	o := facts.Observation{Value: val, End: end, Form: "10-K", FiscalPeriod: "FY"}
	if fy != 0 {
		o.FiscalYear = facts.FY(fy)
	}
	return o
}

// USD wraps observations in a USD-only concept series.
func USD(observations ...facts.Observation) facts.ConceptSeries {
	return facts.ConceptSeries{Units: map[string][]facts.Observation{"USD": observations}}
}

// Document builds a us-gaap document for Apple's CIK.
func Document(concepts facts.Taxonomy) *facts.Document {
	return &facts.Document{
		CIK:        "0000320193",
		EntityName: "Apple Inc.",
		Facts:      map[string]facts.Taxonomy{facts.NamespaceGAAP: concepts},
	}
}

// Apple returns Apple's FY2023 and FY2024 10-K values.
func Apple() *facts.Document {
	return Document(facts.Taxonomy{
		"Assets": USD(
			Obs(352583000000, 2023, "2023-09-30"),
			Obs(364980000000, 2024, "2024-09-28"),
		),
		"StockholdersEquity": USD(Obs(56950000000, 2024, "2024-09-28")),
		"Revenues":           USD(Obs(391035000000, 2024, "2024-09-28")),
		"NetIncomeLoss": USD(
			Obs(96995000000, 2023, "2023-09-30"),
			Obs(93736000000, 2024, "2024-09-28"),
		),
		"NetCashProvidedByUsedInOperatingActivities": USD(Obs(118254000000, 2024, "2024-09-28")),
		"PaymentsToAcquirePropertyPlantAndEquipment": USD(Obs(9447000000, 2024, "2024-09-28")),
		"EarningsPerShareBasic": {Units: map[string][]facts.Observation{
			"USD/shares": {Obs(6.11, 2024, "2024-09-28")},
		}},
	})
}

// AppleJSON returns Apple() encoded as a companyfacts payload.
func AppleJSON() []byte {
	data, err := json.Marshal(Apple())
	if err != nil {
		panic(err)
	}
	return data
}
