// Package facts wraps an SEC EDGAR company-facts document and exposes
// read-only lookup of concept series by taxonomy namespace.
package facts

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Common taxonomy namespaces in the companyfacts payload.
const (
	NamespaceGAAP = "us-gaap"
	NamespaceDEI  = "dei"
)

// =============================================================================
// COMPANY FACTS DOCUMENT
// Matches: https://data.sec.gov/api/xbrl/companyfacts/CIK##########.json
// =============================================================================

// Document is the full fact document for one reporting entity.
type Document struct {
	CIK        string              `json:"cik"`
	EntityName string              `json:"entityName"`
	Facts      map[string]Taxonomy `json:"facts"`
}

// Taxonomy maps concept name -> series, e.g. "Assets" -> ConceptSeries.
type Taxonomy map[string]ConceptSeries

// ConceptSeries holds every observation reported for one concept, keyed by unit
// of measure ("USD", "USD/shares", "shares").
type ConceptSeries struct {
	Label       string                   `json:"label"`
	Description string                   `json:"description"`
	Units       map[string][]Observation `json:"units"`
}

// Observation is a single reported value. Order within a unit is not meaningful.
type Observation struct {
	Value        float64 `json:"val"`
	FiscalYear   *int    `json:"fy,omitempty"`
	End          string  `json:"end"`
	Start        string  `json:"start,omitempty"`
	FiscalPeriod string  `json:"fp,omitempty"`
	Form         string  `json:"form,omitempty"`
	Filed        string  `json:"filed,omitempty"`
	Accession    string  `json:"accn,omitempty"`
	Frame        string  `json:"frame,omitempty"`
}

// UnmarshalJSON accepts the cik as either a JSON number (as SEC serves it) or a
// string, and normalizes it to 10 digits when possible.
func (d *Document) UnmarshalJSON(data []byte) error {
	type rawDocument struct {
		CIK        json.RawMessage     `json:"cik"`
		EntityName string              `json:"entityName"`
		Facts      map[string]Taxonomy `json:"facts"`
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.EntityName = raw.EntityName
	d.Facts = raw.Facts
	d.CIK = ""

	if len(raw.CIK) == 0 || string(raw.CIK) == "null" {
		return nil
	}

	var cik string
	var num json.Number
	if err := json.Unmarshal(raw.CIK, &cik); err != nil {
		if err := json.Unmarshal(raw.CIK, &num); err != nil {
			return fmt.Errorf("cik: %w", err)
		}
		cik = num.String()
	}

	if normalized, err := NormalizeCIK(cik); err == nil {
		d.CIK = normalized
	} else {
		d.CIK = cik
	}
	return nil
}

// Year returns the fiscal year as a plain int, or 0 when the field was not reported.
func (o Observation) Year() int {
	if o.FiscalYear == nil {
		return 0
	}
	return *o.FiscalYear
}

// FY is a small helper for building observations in code and tests.
func FY(year int) *int {
	return &year
}

func (o Observation) String() string {
	return fmt.Sprintf("%s fy=%d end=%s val=%s", o.Form, o.Year(), o.End, strconv.FormatFloat(o.Value, 'f', -1, 64))
}
