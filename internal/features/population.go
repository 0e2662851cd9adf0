package features

import (
	"strings"

	"grantlens/domain/core"
)

// Demographic covariate column names accepted by the population reference
// file and exposed to regression specs.
const (
	CovMedianIncome = "median_household_income"
	CovPovertyRate  = "poverty_rate"
	CovUninsured    = "uninsured_rate"
	CovUrbanPct     = "urban_pct"
)

// PopulationEntry is one row of the population reference: a state-year
// population figure plus optional demographic covariates.
type PopulationEntry struct {
	StateFIPS  string
	Year       core.FiscalYear
	Population float64
	Covariates map[string]float64
}

// PopulationTable is the geography->population lookup the feature stage
// requires. Lookups prefer the exact year and fall back to the closest
// available year, preferring the later one at equal distance.
type PopulationTable struct {
	byState map[string][]PopulationEntry
}

// NewPopulationTable indexes entries by state FIPS
func NewPopulationTable(entries []PopulationEntry) *PopulationTable {
	t := &PopulationTable{byState: make(map[string][]PopulationEntry)}
	for _, e := range entries {
		fips := strings.TrimSpace(e.StateFIPS)
		if fips == "" || e.Population <= 0 {
			continue
		}
		e.StateFIPS = fips
		t.byState[fips] = append(t.byState[fips], e)
	}
	return t
}

// Empty reports whether the table holds no entries at all. An entirely
// absent table is fatal for the run; per-geography misses are not.
func (t *PopulationTable) Empty() bool {
	return len(t.byState) == 0
}

// Lookup returns the best entry for a state and year
func (t *PopulationTable) Lookup(stateFIPS string, year core.FiscalYear) (PopulationEntry, bool) {
	entries := t.byState[stateFIPS]
	if len(entries) == 0 {
		return PopulationEntry{}, false
	}

	best := entries[0]
	bestDist := yearDistance(best.Year, year)
	for _, e := range entries[1:] {
		d := yearDistance(e.Year, year)
		if d < bestDist || (d == bestDist && e.Year > best.Year) {
			best = e
			bestDist = d
		}
	}
	return best, true
}

func yearDistance(a, b core.FiscalYear) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}
