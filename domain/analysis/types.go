package analysis

import (
	"grantlens/domain/core"
)

// ============================================================================
// VALIDITY AND WARNINGS
// ============================================================================

// Validity tags whether an analysis met its assumptions. Anything other
// than ValidityOK means the numeric outputs must not be interpreted.
type Validity string

const (
	ValidityOK                 Validity = "ok"
	ValidityInsufficientSample Validity = "insufficient_sample"
	ValidityInsufficientRows   Validity = "insufficient_rows"
	ValidityDegenerate         Validity = "degenerate"
	ValidityFailed             Validity = "failed"
)

// WarningCode represents structured warning types
type WarningCode string

const (
	WarningLowN             WarningCode = "LOW_N"              // Sample size < 30
	WarningHighMissing      WarningCode = "HIGH_MISSING"       // >30% of rows excluded for missing data
	WarningZeroVariance     WarningCode = "ZERO_VARIANCE"      // A variable has no variation
	WarningUnbalancedGroups WarningCode = "UNBALANCED_GROUPS"  // Largest group >5x smallest
	WarningGroupDropped     WarningCode = "GROUP_DROPPED"      // Group below minimum size excluded
	WarningEmptyCluster     WarningCode = "EMPTY_CLUSTER"      // K-means produced an empty cluster
	WarningNoConvergence    WarningCode = "NO_CONVERGENCE"     // Iteration cap reached before stability
	WarningCategoryUnmapped WarningCode = "CATEGORY_UNMAPPED"  // Free-text category fell back to other_unknown
	WarningDuplicateOutcome WarningCode = "DUPLICATE_OUTCOME"  // Duplicate (geography, year, metric) resolved
)

// ============================================================================
// RESULT COMPONENTS
// ============================================================================

// Coefficient is one fitted regression term
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	TStat    float64 `json:"t_stat"`
	PValue   float64 `json:"p_value"`
}

// GroupSummary describes one comparison group
type GroupSummary struct {
	Group  string  `json:"group"`
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// ClusterSummary describes one cluster in original variable units
type ClusterSummary struct {
	Cluster  int                `json:"cluster"`
	Size     int                `json:"size"`
	Centroid map[string]float64 `json:"centroid"`
}

// ============================================================================
// STATISTICAL RESULTS
// ============================================================================

// StatisticalResult is the self-contained output of one analysis.
// INVARIANTS:
// - Validity always set; numeric fields are nil unless ValidityOK
// - SampleSize + ExcludedRows equals the rows offered to the analysis
// - Results are immutable once produced
type StatisticalResult struct {
	ID           core.AnalysisID  `json:"id"`
	RunID        core.RunID       `json:"run_id"`
	Name         string           `json:"name"`
	Kind         Kind             `json:"kind"`
	Validity     Validity         `json:"validity"`
	SampleSize   int              `json:"sample_size"`
	ExcludedRows int              `json:"excluded_rows"`
	Statistic    *float64         `json:"statistic,omitempty"`
	PValue       *float64         `json:"p_value,omitempty"`
	QValue       *float64         `json:"q_value,omitempty"`
	EffectSize   *float64         `json:"effect_size,omitempty"`
	EffectLabel  string           `json:"effect_label,omitempty"`
	Coefficients []Coefficient    `json:"coefficients,omitempty"`
	Groups       []GroupSummary   `json:"groups,omitempty"`
	Clusters     []ClusterSummary `json:"clusters,omitempty"`
	Assignments  map[string]int   `json:"assignments,omitempty"`
	Warnings     []WarningCode    `json:"warnings,omitempty"`
	ElapsedMs    int64            `json:"elapsed_ms"`
	Error        string           `json:"error,omitempty"`
}

// NewResult constructs the skeleton result for a spec
func NewResult(spec Spec) StatisticalResult {
	return StatisticalResult{
		ID:       core.NewAnalysisID(),
		Name:     spec.Name,
		Kind:     spec.Kind,
		Validity: ValidityOK,
	}
}

// InvalidResult constructs a result that carries only a validity verdict
func InvalidResult(spec Spec, validity Validity, warnings ...WarningCode) StatisticalResult {
	r := NewResult(spec)
	r.Validity = validity
	r.Warnings = warnings
	return r
}

// Warn appends a warning code if not already present
func (r *StatisticalResult) Warn(code WarningCode) {
	for _, existing := range r.Warnings {
		if existing == code {
			return
		}
	}
	r.Warnings = append(r.Warnings, code)
}

// HasPValue reports whether the result carries an interpretable p-value
func (r StatisticalResult) HasPValue() bool {
	return r.Validity == ValidityOK && r.PValue != nil
}

// FloatPtr is a convenience for optional numeric fields
func FloatPtr(v float64) *float64 {
	return &v
}
