package facts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var (
	// ErrMalformedDocument is returned when the document lacks the namespace
	// mapping the caller asked for. Missing concepts or units are not errors.
	ErrMalformedDocument = errors.New("malformed fact document")

	// ErrInvalidCIK is returned by NormalizeCIK for identifiers that cannot be padded to 10 digits.
	ErrInvalidCIK = errors.New("invalid CIK")
)

// Parse decodes a companyfacts JSON payload.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc.Facts == nil {
		return nil, fmt.Errorf("%w: missing facts mapping", ErrMalformedDocument)
	}
	return &doc, nil
}

// Decode reads and parses a companyfacts payload from r.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read fact document: %w", err)
	}
	return Parse(data)
}

// Store gives read-only access to one namespace of a Document for the duration
// of an extraction pass. It never copies the underlying series.
type Store struct {
	doc       *Document
	namespace string
	taxonomy  Taxonomy
}

// NewStore binds a document to a taxonomy namespace.
func NewStore(doc *Document, namespace string) (*Store, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrMalformedDocument)
	}
	if doc.Facts == nil {
		return nil, fmt.Errorf("%w: missing facts mapping", ErrMalformedDocument)
	}
	taxonomy, ok := doc.Facts[namespace]
	if !ok || taxonomy == nil {
		return nil, fmt.Errorf("%w: namespace %q not present", ErrMalformedDocument, namespace)
	}
	return &Store{doc: doc, namespace: namespace, taxonomy: taxonomy}, nil
}

// Namespace returns the namespace the store is bound to.
func (s *Store) Namespace() string {
	return s.namespace
}

// Document returns the wrapped document.
func (s *Store) Document() *Document {
	return s.doc
}

// ConceptSeries looks up a concept. The bool is false when the concept was not reported.
func (s *Store) ConceptSeries(name string) (ConceptSeries, bool) {
	series, ok := s.taxonomy[name]
	return series, ok
}

// Observations returns the observations of a concept in one unit. Absent concept,
// absent unit and an empty list all yield an empty slice.
func (s *Store) Observations(concept, unit string) []Observation {
	series, ok := s.taxonomy[concept]
	if !ok || series.Units == nil {
		return nil
	}
	return series.Units[unit]
}

// Concepts lists the concept names in the namespace, sorted.
func (s *Store) Concepts() []string {
	names := make([]string, 0, len(s.taxonomy))
	for name := range s.taxonomy {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Units lists the units reported for a concept, sorted.
func (s *Store) Units(concept string) []string {
	series, ok := s.taxonomy[concept]
	if !ok {
		return nil
	}
	units := make([]string, 0, len(series.Units))
	for unit := range series.Units {
		units = append(units, unit)
	}
	sort.Strings(units)
	return units
}

// Namespaces lists the namespaces present in a document, sorted.
func Namespaces(doc *Document) []string {
	if doc == nil {
		return nil
	}
	names := make([]string, 0, len(doc.Facts))
	for ns := range doc.Facts {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// NormalizeCIK zero-pads a CIK to 10 digits (e.g. "320193" -> "0000320193").
// A leading "CIK" prefix and surrounding whitespace are tolerated.
func NormalizeCIK(cik string) (string, error) {
	cik = strings.TrimSpace(cik)
	cik = strings.TrimPrefix(strings.ToUpper(cik), "CIK")

	if cik == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCIK)
	}
	for _, r := range cik {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q contains non-digits", ErrInvalidCIK, cik)
		}
	}

	trimmed := strings.TrimLeft(cik, "0")
	if trimmed == "" {
		return "", fmt.Errorf("%w: zero", ErrInvalidCIK)
	}
	if len(trimmed) > 10 {
		return "", fmt.Errorf("%w: %q longer than 10 digits", ErrInvalidCIK, cik)
	}
	return fmt.Sprintf("%010s", trimmed), nil
}
