package table

import (
	"fmt"
	"strings"

	"grantlens/domain/core"
	"grantlens/domain/geo"
	"grantlens/domain/grants"
	"grantlens/domain/outcomes"
)

// ============================================================================
// MERGE KEYS AND PROVENANCE
// ============================================================================

// Key identifies one (canonical geography, year) analytical unit
type Key struct {
	GeoKey string          `json:"geo_key"`
	Year   core.FiscalYear `json:"year"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.GeoKey, k.Year)
}

// Provenance records which side(s) of the join produced a row
type Provenance string

const (
	ProvenanceMatched     Provenance = "matched"
	ProvenanceGrantOnly   Provenance = "grant_only"
	ProvenanceOutcomeOnly Provenance = "outcome_only"
)

// ============================================================================
// MERGED ROWS
// ============================================================================

// GrantAggregate summarizes all grants sharing a key. A key with outcome
// data but no grants carries an explicit zero aggregate: absence of an
// award is a true zero, unlike a suppressed outcome metric.
type GrantAggregate struct {
	TotalFunding   float64                         `json:"total_funding"`
	GrantCount     int                             `json:"grant_count"`
	ProgramCounts  map[grants.ProgramType]int      `json:"program_counts,omitempty"`
	ProgramFunding map[grants.ProgramType]float64  `json:"program_funding,omitempty"`
}

// ZeroGrantAggregate returns the explicit no-grants aggregate
func ZeroGrantAggregate() GrantAggregate {
	return GrantAggregate{}
}

// MergedRow is one joined analytical unit. The geography is always
// canonical; missing outcome metrics stay absent from the map rather than
// being coerced to zero.
type MergedRow struct {
	Geography  geo.CanonicalGeography                  `json:"geography"`
	Year       core.FiscalYear                         `json:"year"`
	Grants     GrantAggregate                          `json:"grants"`
	Outcomes   map[outcomes.Metric]outcomes.MetricValue `json:"outcomes,omitempty"`
	Provenance Provenance                              `json:"provenance"`
	Flags      []string                                `json:"flags,omitempty"`
}

// Key returns the row's analytical key
func (r MergedRow) Key() Key {
	return Key{GeoKey: r.Geography.Key(), Year: r.Year}
}

// Outcome returns the usable value of a metric, if present and not suppressed
func (r MergedRow) Outcome(m outcomes.Metric) (float64, bool) {
	v, ok := r.Outcomes[m]
	if !ok {
		return 0, false
	}
	return v.Float()
}

// ============================================================================
// MERGE REPORT
// ============================================================================

// MergeReport is the auditable accounting of one merge. Every produced row
// is counted exactly once across the three provenance buckets.
type MergeReport struct {
	GrantRowsIn          int `json:"grant_rows_in"`
	OutcomeRowsIn        int `json:"outcome_rows_in"`
	MergedRows           int `json:"merged_rows"`
	MatchedRows          int `json:"matched_rows"`
	UnmatchedGrantRows   int `json:"unmatched_grant_rows"`
	UnmatchedOutcomeRows int `json:"unmatched_outcome_rows"`
	DuplicateOutcomes    int `json:"duplicate_outcomes"`
}

// Conserved verifies the no-silent-row-loss invariant
func (r MergeReport) Conserved() bool {
	return r.MatchedRows+r.UnmatchedGrantRows+r.UnmatchedOutcomeRows == r.MergedRows
}

// ============================================================================
// FEATURE ROWS
// ============================================================================

// Feature variable names. These, the outcome metric names, and the
// demographic covariate names form the flat variable namespace analyses
// reference.
const (
	VarTotalFunding     = "total_funding"
	VarGrantCount       = "grant_count"
	VarPerCapitaFunding = "per_capita_funding"
	VarFundingTier      = "funding_tier"

	programSharePrefix = "share_"
	outcomeDeltaPrefix = "delta_"
)

// ProgramShareVar returns the variable name for a program's funding share
func ProgramShareVar(p grants.ProgramType) string {
	return programSharePrefix + string(p)
}

// OutcomeDeltaVar returns the variable name for a metric's national delta
func OutcomeDeltaVar(m outcomes.Metric) string {
	return outcomeDeltaPrefix + string(m)
}

// FeatureRow augments a MergedRow with derived equity variables. The
// embedded row is a copy; feature computation never mutates merge output.
type FeatureRow struct {
	MergedRow

	PerCapitaFunding *float64                       `json:"per_capita_funding,omitempty"`
	Population       *float64                       `json:"population,omitempty"`
	FundingTier      string                         `json:"funding_tier,omitempty"`
	ProgramShare     map[grants.ProgramType]float64 `json:"program_share,omitempty"`
	OutcomeDeltas    map[outcomes.Metric]float64    `json:"outcome_deltas,omitempty"`
	Covariates       map[string]float64             `json:"covariates,omitempty"`
	OutlierFlags     []string                       `json:"outlier_flags,omitempty"`
}

// Variable resolves a numeric variable by name. The second return is false
// when the variable is missing for this row (absent covariate, suppressed
// metric, unknown population), which is how listwise deletion sees gaps.
func (r FeatureRow) Variable(name string) (float64, bool) {
	switch name {
	case VarTotalFunding:
		return r.Grants.TotalFunding, true
	case VarGrantCount:
		return float64(r.Grants.GrantCount), true
	case VarPerCapitaFunding:
		if r.PerCapitaFunding != nil {
			return *r.PerCapitaFunding, true
		}
		// Population may be unknown while a caller-supplied covariate
		// carries the value; fall through to the covariate lookup.
	}
	if strings.HasPrefix(name, programSharePrefix) {
		p := grants.ProgramType(strings.TrimPrefix(name, programSharePrefix))
		share, ok := r.ProgramShare[p]
		return share, ok
	}
	if strings.HasPrefix(name, outcomeDeltaPrefix) {
		m := outcomes.Metric(strings.TrimPrefix(name, outcomeDeltaPrefix))
		delta, ok := r.OutcomeDeltas[m]
		return delta, ok
	}
	if m := outcomes.Metric(name); m.IsValid() {
		return r.Outcome(m)
	}
	if v, ok := r.Covariates[name]; ok {
		return v, true
	}
	return 0, false
}

// Categorical resolves a grouping variable by name
func (r FeatureRow) Categorical(name string) (string, bool) {
	switch name {
	case VarFundingTier:
		return r.FundingTier, r.FundingTier != ""
	case "state":
		return r.Geography.StateCode, r.Geography.StateCode != ""
	case "provenance":
		return string(r.Provenance), r.Provenance != ""
	}
	return "", false
}
