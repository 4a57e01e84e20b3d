// Package tag matches article text against a configured universe of tickers
// and aliases, producing the per-document entity tag set.
package tag

import (
	"sort"
	"strings"

	"github.com/dmarche/newsquant/internal/config"
	"github.com/dmarche/newsquant/internal/database"
)

// Tagger matches text against a dictionary of entities. Matching is
// case-insensitive on whole terms; the bare ticker symbol stays
// case-sensitive so short symbols like "A" or "ALL" don't fire on prose.
type Tagger struct {
	entities []entity
}

type entity struct {
	ticker   string
	industry string
	terms    []string // lowercased aliases
}

// New builds a tagger from the configured universe.
func New(universe []config.Entity) *Tagger {
	t := &Tagger{}
	for _, e := range universe {
		if e.Ticker == "" {
			continue
		}
		ent := entity{ticker: e.Ticker, industry: e.Industry}
		for _, a := range e.Aliases {
			a = strings.TrimSpace(a)
			if a != "" {
				ent.terms = append(ent.terms, strings.ToLower(a))
			}
		}
		t.entities = append(t.entities, ent)
	}
	return t
}

// Match returns the entities found in the text, one result per matched
// ticker with the terms that hit and their total occurrence count. Unknown
// text simply yields no matches.
func (t *Tagger) Match(text string) []database.EntityMatch {
	if text == "" || len(t.entities) == 0 {
		return nil
	}
	lower := strings.ToLower(text)

	var out []database.EntityMatch
	for _, e := range t.entities {
		var hits []string
		count := 0

		if n := countTerm(text, e.ticker); n > 0 {
			hits = append(hits, e.ticker)
			count += n
		}
		for _, term := range e.terms {
			if n := countTerm(lower, term); n > 0 {
				hits = append(hits, term)
				count += n
			}
		}
		if count == 0 {
			continue
		}
		sort.Strings(hits)
		out = append(out, database.EntityMatch{
			Ticker:   e.ticker,
			Industry: e.industry,
			Matches:  hits,
			Count:    count,
		})
	}
	return out
}

// countTerm counts whole-word occurrences of term in text.
func countTerm(text, term string) int {
	if term == "" {
		return 0
	}
	count := 0
	for start := 0; ; {
		i := strings.Index(text[start:], term)
		if i < 0 {
			break
		}
		pos := start + i
		end := pos + len(term)
		if isBoundary(text, pos-1) && isBoundary(text, end) {
			count++
		}
		start = end
	}
	return count
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9')
}
