// Package search resolves user queries against the SEC company directory.
package search

import (
	"sort"
	"strings"

	"financial_lookup/pkg/core/facts"
	"financial_lookup/pkg/core/ingest"
)

// MinQueryLength is the shortest query Find will answer.
const MinQueryLength = 2

// Directory is an immutable, in-memory company list. It is safe for
// concurrent use once built.
type Directory struct {
	companies []ingest.Company
	byCIK     map[string]int
	byTicker  map[string]int
}

// NewDirectory indexes companies, preserving their order for tie-breaks.
func NewDirectory(companies []ingest.Company) *Directory {
	d := &Directory{
		companies: companies,
		byCIK:     make(map[string]int, len(companies)),
		byTicker:  make(map[string]int, len(companies)),
	}
	for i, c := range companies {
		if _, ok := d.byCIK[c.CIK]; !ok {
			d.byCIK[c.CIK] = i
		}
		t := strings.ToLower(c.Ticker)
		if _, ok := d.byTicker[t]; !ok {
			d.byTicker[t] = i
		}
	}
	return d
}

// Len returns the number of companies.
func (d *Directory) Len() int {
	return len(d.companies)
}

// Find returns companies whose ticker or name contains query, case-insensitive.
// Ticker-prefix matches rank first, then name-prefix matches, then the rest in
// directory order. limit <= 0 means no limit.
func (d *Directory) Find(query string, limit int) []ingest.Company {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) < MinQueryLength {
		return nil
	}

	type match struct {
		rank int
		c    ingest.Company
	}
	var matches []match
	for _, c := range d.companies {
		ticker := strings.ToLower(c.Ticker)
		name := strings.ToLower(c.Name)
		if !strings.Contains(ticker, q) && !strings.Contains(name, q) {
			continue
		}

		rank := 2
		switch {
		case strings.HasPrefix(ticker, q):
			rank = 0
		case strings.HasPrefix(name, q):
			rank = 1
		}
		matches = append(matches, match{rank: rank, c: c})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].rank < matches[j].rank
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]ingest.Company, len(matches))
	for i, m := range matches {
		out[i] = m.c
	}
	return out
}

// Lookup resolves a free-form query to one company: exact ticker first, then
// the first name containing the query, then the best fuzzy score.
func (d *Directory) Lookup(query string) (ingest.Company, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return ingest.Company{}, false
	}

	if i, ok := d.byTicker[q]; ok {
		return d.companies[i], true
	}

	for _, c := range d.companies {
		if strings.Contains(strings.ToLower(c.Name), q) {
			return c, true
		}
	}

	best, bestScore := -1, 0
	for i, c := range d.companies {
		// strictly greater keeps the earliest company on ties
		if s := score(q, c); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return ingest.Company{}, false
	}
	return d.companies[best], true
}

// score weights ticker hits above name hits and adds a bonus per query word
// found inside a name word.
func score(q string, c ingest.Company) int {
	name := strings.ToLower(c.Name)
	ticker := strings.ToLower(c.Ticker)

	s := 0
	if strings.Contains(name, q) {
		s += 10
	}
	if strings.Contains(ticker, q) {
		s += 15
	}
	if strings.HasPrefix(name, q) {
		s += 5
	}
	if strings.HasPrefix(ticker, q) {
		s += 8
	}

	nameWords := strings.Fields(name)
	for _, qw := range strings.Fields(q) {
		for _, nw := range nameWords {
			if strings.Contains(nw, qw) {
				s += 3
			}
		}
	}
	return s
}

// ByTicker finds a company by exact ticker, case-insensitive.
func (d *Directory) ByTicker(ticker string) (ingest.Company, bool) {
	i, ok := d.byTicker[strings.ToLower(strings.TrimSpace(ticker))]
	if !ok {
		return ingest.Company{}, false
	}
	return d.companies[i], true
}

// ByCIK finds a company by CIK in any accepted form.
func (d *Directory) ByCIK(cik string) (ingest.Company, bool) {
	padded, err := facts.NormalizeCIK(cik)
	if err != nil {
		return ingest.Company{}, false
	}
	i, ok := d.byCIK[padded]
	if !ok {
		return ingest.Company{}, false
	}
	return d.companies[i], true
}
