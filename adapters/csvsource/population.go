package csvsource

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"grantlens/domain/core"
	"grantlens/internal/features"
	geo "grantlens/internal/geo"
	"grantlens/internal/normalize"
)

// PopulationReader reads the population reference CSV. Expected header:
// state,year,population plus optional demographic covariate columns.
type PopulationReader struct {
	path     string
	resolver *geo.Resolver
}

// NewPopulationReader creates a reader that resolves state identifiers
// through the shared geography resolver
func NewPopulationReader(path string, resolver *geo.Resolver) *PopulationReader {
	return &PopulationReader{path: path, resolver: resolver}
}

// covariateColumns are the optional demographic columns regression specs
// may reference
var covariateColumns = []string{
	features.CovMedianIncome,
	features.CovPovertyRate,
	features.CovUninsured,
	features.CovUrbanPct,
}

// ReadPopulation reads and resolves every reference row. Rows whose state
// cannot be resolved are skipped with a log line; they surface later as
// population misses if a funded geography needed them.
func (r *PopulationReader) ReadPopulation(ctx context.Context) ([]features.PopulationEntry, error) {
	rows, err := readCSVRows(r.path)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("population file %s needs a header row and at least one data row", r.path)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = normalizeHeader(h)
	}
	stateIdx, yearIdx, popIdx := indexOf(header, "state"), indexOf(header, "year"), indexOf(header, "population")
	if stateIdx < 0 || yearIdx < 0 || popIdx < 0 {
		return nil, fmt.Errorf("population file header must include state, year, population (have: %s)",
			strings.Join(rows[0], ", "))
	}

	entries := make([]features.PopulationEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resolution := r.resolver.Resolve(cell(row, stateIdx))
		if !resolution.IsResolved() {
			log.Printf("[PopulationReader] row %d: skipping unresolvable state %q", i+2, cell(row, stateIdx))
			continue
		}
		year, err := normalize.ParseFiscalYear(cell(row, yearIdx))
		if err != nil {
			log.Printf("[PopulationReader] row %d: bad year %q", i+2, cell(row, yearIdx))
			continue
		}
		pop, err := strconv.ParseFloat(strings.ReplaceAll(cell(row, popIdx), ",", ""), 64)
		if err != nil || pop <= 0 {
			log.Printf("[PopulationReader] row %d: bad population %q", i+2, cell(row, popIdx))
			continue
		}

		entry := features.PopulationEntry{
			StateFIPS:  resolution.Geography.StateFIPS,
			Year:       core.FiscalYear(year),
			Population: pop,
		}
		for _, name := range covariateColumns {
			idx := indexOf(header, name)
			if idx < 0 {
				continue
			}
			v, err := strconv.ParseFloat(cell(row, idx), 64)
			if err != nil {
				continue
			}
			if entry.Covariates == nil {
				entry.Covariates = make(map[string]float64)
			}
			entry.Covariates[name] = v
		}
		entries = append(entries, entry)
	}

	log.Printf("[PopulationReader] read %d reference rows from %s", len(entries), r.path)
	return entries, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
