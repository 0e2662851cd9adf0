package merge

import (
	"sort"

	"grantlens/domain/geo"
	"grantlens/domain/grants"
	"grantlens/domain/outcomes"
	"grantlens/domain/table"
)

// LocatedGrant pairs a normalized grant with its resolved geography
type LocatedGrant struct {
	Grant     grants.GrantRecord
	Geography geo.CanonicalGeography
}

// LocatedOutcome pairs a normalized observation with its resolved geography
type LocatedOutcome struct {
	Outcome   outcomes.OutcomeRecord
	Geography geo.CanonicalGeography
}

// observation tracks one outcome candidate with its input position for
// deterministic duplicate resolution
type observation struct {
	value    outcomes.MetricValue
	position int
}

// Merge joins located grants and outcomes into the canonical row set with
// a full outer join on (geography, year). No input row is silently lost:
// every produced row lands in exactly one of the matched, unmatched-grant
// (outcome data without grants), or unmatched-outcome (grants without
// outcome data) buckets of the report.
func Merge(grantRows []LocatedGrant, outcomeRows []LocatedOutcome) ([]table.MergedRow, table.MergeReport) {
	report := table.MergeReport{
		GrantRowsIn:   len(grantRows),
		OutcomeRowsIn: len(outcomeRows),
	}

	geographies := make(map[table.Key]geo.CanonicalGeography)

	// Aggregate grants per key: multiple awards share a key
	aggregates := make(map[table.Key]table.GrantAggregate)
	for _, lg := range grantRows {
		key := table.Key{GeoKey: lg.Geography.Key(), Year: lg.Grant.FiscalYear}
		geographies[key] = lg.Geography

		agg := aggregates[key]
		agg.TotalFunding += lg.Grant.Amount
		agg.GrantCount++
		if agg.ProgramCounts == nil {
			agg.ProgramCounts = make(map[grants.ProgramType]int)
			agg.ProgramFunding = make(map[grants.ProgramType]float64)
		}
		agg.ProgramCounts[lg.Grant.Program]++
		agg.ProgramFunding[lg.Grant.Program] += lg.Grant.Amount
		aggregates[key] = agg
	}

	// Collect outcomes per key, resolving duplicate (key, metric) pairs:
	// the most recently reported value wins, with later input position as
	// the tie-break so a fixed input order always merges identically
	observed := make(map[table.Key]map[outcomes.Metric]observation)
	duplicates := make(map[table.Key]bool)
	for pos, lo := range outcomeRows {
		key := table.Key{GeoKey: lo.Geography.Key(), Year: lo.Outcome.Year}
		geographies[key] = lo.Geography

		metrics := observed[key]
		if metrics == nil {
			metrics = make(map[outcomes.Metric]observation)
			observed[key] = metrics
		}

		next := observation{value: lo.Outcome.Value, position: pos}
		current, exists := metrics[lo.Outcome.Metric]
		if !exists {
			metrics[lo.Outcome.Metric] = next
			continue
		}

		report.DuplicateOutcomes++
		duplicates[key] = true
		if supersedes(next, current) {
			metrics[lo.Outcome.Metric] = next
		}
	}

	// Full outer join over the union of keys
	keys := make([]table.Key, 0, len(geographies))
	for key := range geographies {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].GeoKey != keys[j].GeoKey {
			return keys[i].GeoKey < keys[j].GeoKey
		}
		return keys[i].Year < keys[j].Year
	})

	rows := make([]table.MergedRow, 0, len(keys))
	for _, key := range keys {
		agg, hasGrants := aggregates[key]
		metrics, hasOutcomes := observed[key]

		row := table.MergedRow{
			Geography: geographies[key],
			Year:      key.Year,
		}

		switch {
		case hasGrants && hasOutcomes:
			row.Provenance = table.ProvenanceMatched
			report.MatchedRows++
		case hasGrants:
			row.Provenance = table.ProvenanceGrantOnly
			report.UnmatchedOutcomeRows++
		default:
			row.Provenance = table.ProvenanceOutcomeOnly
			report.UnmatchedGrantRows++
		}

		if hasGrants {
			row.Grants = agg
		} else {
			// No grant record for the key is a true zero, unlike a
			// suppressed outcome metric
			row.Grants = table.ZeroGrantAggregate()
		}

		if hasOutcomes {
			row.Outcomes = make(map[outcomes.Metric]outcomes.MetricValue, len(metrics))
			for metric, obs := range metrics {
				row.Outcomes[metric] = obs.value
			}
		}

		if duplicates[key] {
			row.Flags = append(row.Flags, "duplicate_outcome")
		}

		rows = append(rows, row)
		report.MergedRows++
	}

	return rows, report
}

// supersedes decides whether a newly seen observation replaces the held
// one for the same (geography, year, metric)
func supersedes(next, current observation) bool {
	if next.value.Reported.After(current.value.Reported) {
		return true
	}
	if current.value.Reported.After(next.value.Reported) {
		return false
	}
	return next.position > current.position
}
