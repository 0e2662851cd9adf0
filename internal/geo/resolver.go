package geo

import (
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	domaingeo "grantlens/domain/geo"
)

// DefaultFuzzyMaxDistance bounds the edit distance the fuzzy fallback accepts
const DefaultFuzzyMaxDistance = 2

// Resolver maps raw geography strings to canonical geographies. Resolution
// is deterministic: the same raw string yields the same Resolution for the
// life of the resolver. Safe for concurrent use.
type Resolver struct {
	byName  map[string]domaingeo.CanonicalGeography
	byCode  map[string]domaingeo.CanonicalGeography
	byAlias map[string]domaingeo.CanonicalGeography
	names   []string

	fuzzyMaxDist int

	mu   sync.RWMutex
	memo map[string]domaingeo.Resolution
}

// NewResolver builds a resolver over the built-in state table
func NewResolver(fuzzyMaxDist int) *Resolver {
	if fuzzyMaxDist < 0 {
		fuzzyMaxDist = DefaultFuzzyMaxDistance
	}

	r := &Resolver{
		byName:       make(map[string]domaingeo.CanonicalGeography, len(stateTable)),
		byCode:       make(map[string]domaingeo.CanonicalGeography, len(stateTable)),
		byAlias:      make(map[string]domaingeo.CanonicalGeography),
		fuzzyMaxDist: fuzzyMaxDist,
		memo:         make(map[string]domaingeo.Resolution),
	}

	for _, entry := range stateTable {
		g := domaingeo.CanonicalGeography{
			StateFIPS: entry.fips,
			StateCode: entry.code,
			Name:      entry.name,
		}
		key := normalizeRaw(entry.name)
		r.byName[key] = g
		r.byCode[strings.ToLower(entry.code)] = g
		for _, alias := range entry.aliases {
			r.byAlias[normalizeRaw(alias)] = g
		}
		r.names = append(r.names, key)
	}
	sort.Strings(r.names)
	return r
}

// normalizeRaw lowercases, trims, strips punctuation, and collapses
// whitespace so formatting inconsistencies cannot defeat the lookup
func normalizeRaw(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimPrefix(s, "state of ")
	return strings.TrimSpace(s)
}

// Resolve maps one raw geography string to a tagged Resolution. A
// "State, County" pair resolves at state level; the county text does not
// change canonical identity.
func (r *Resolver) Resolve(raw string) domaingeo.Resolution {
	r.mu.RLock()
	if cached, ok := r.memo[raw]; ok {
		r.mu.RUnlock()
		return cached
	}
	r.mu.RUnlock()

	resolution := r.resolve(raw)

	r.mu.Lock()
	r.memo[raw] = resolution
	r.mu.Unlock()
	return resolution
}

func (r *Resolver) resolve(raw string) domaingeo.Resolution {
	s := normalizeRaw(raw)
	if s == "" {
		return domaingeo.Unresolved("empty geography")
	}

	// "State, County" input resolves on the state part
	if idx := strings.Index(s, ","); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
		if s == "" {
			return domaingeo.Unresolved("empty state before county")
		}
	}

	if g, ok := r.byName[s]; ok {
		return domaingeo.Resolved(g, domaingeo.MatchExact)
	}
	if len(s) == 2 {
		if g, ok := r.byCode[s]; ok {
			return domaingeo.Resolved(g, domaingeo.MatchAbbreviation)
		}
	}
	if g, ok := r.byAlias[s]; ok {
		return domaingeo.Resolved(g, domaingeo.MatchAlias)
	}

	return r.fuzzy(s)
}

// fuzzy finds the unique nearest state name within the distance bound.
// Two candidates at the same best distance fail as ambiguous rather than
// guessing.
func (r *Resolver) fuzzy(s string) domaingeo.Resolution {
	if r.fuzzyMaxDist == 0 {
		return domaingeo.Unresolved("no exact match and fuzzy matching disabled")
	}

	// A match only wins if its distance is strictly better than every
	// other candidate's; equal-best candidates fail as ambiguous.
	best := r.fuzzyMaxDist + 1
	var bestNames []string

	for _, name := range r.names {
		d := levenshtein.ComputeDistance(s, name)
		switch {
		case d < best:
			best = d
			bestNames = []string{name}
		case d == best:
			bestNames = append(bestNames, name)
		}
	}

	if best > r.fuzzyMaxDist {
		return domaingeo.Unresolved("no candidate within edit distance")
	}
	if len(bestNames) > 1 {
		display := make([]string, len(bestNames))
		for i, name := range bestNames {
			display[i] = r.byName[name].Name
		}
		return domaingeo.Ambiguous(display)
	}
	return domaingeo.Resolved(r.byName[bestNames[0]], domaingeo.MatchFuzzy)
}

// Lookup returns the canonical geography for a USPS code, if known
func (r *Resolver) Lookup(code string) (domaingeo.CanonicalGeography, bool) {
	g, ok := r.byCode[strings.ToLower(strings.TrimSpace(code))]
	return g, ok
}

// Size returns the number of reference entries
func (r *Resolver) Size() int {
	return len(r.byName)
}
