package run

import (
	"grantlens/domain/analysis"
	"grantlens/domain/core"
)

// Status tracks a run through its lifecycle
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// MaxExclusionNotes bounds the audit sample kept in memory per run
const MaxExclusionNotes = 100

// Counts is the run-level audit ledger. Every rejected, unresolved, or
// unmatched record lands in exactly one counter so the report can account
// for the difference between rows in and rows analyzed.
type Counts struct {
	GrantRowsIn           int `json:"grant_rows_in"`
	OutcomeRowsIn         int `json:"outcome_rows_in"`
	MalformedGrants       int `json:"malformed_grants"`
	MalformedOutcomes     int `json:"malformed_outcomes"`
	UnresolvedGeographies int `json:"unresolved_geographies"`
	AmbiguousGeographies  int `json:"ambiguous_geographies"`
	UnmappedCategories    int `json:"unmapped_categories"`
	SuppressedOutcomes    int `json:"suppressed_outcomes"`
	DuplicateOutcomes     int `json:"duplicate_outcomes"`
	MergedRows            int `json:"merged_rows"`
	MatchedRows           int `json:"matched_rows"`
	UnmatchedGrantRows    int `json:"unmatched_grant_rows"`
	UnmatchedOutcomeRows  int `json:"unmatched_outcome_rows"`
	PopulationMisses      int `json:"population_misses"`
}

// Conserved verifies the merge accounting invariant
func (c Counts) Conserved() bool {
	return c.MatchedRows+c.UnmatchedGrantRows+c.UnmatchedOutcomeRows == c.MergedRows
}

// AnalysisOutcome is the per-analysis line in the run report
type AnalysisOutcome struct {
	Name      string                   `json:"name"`
	Kind      analysis.Kind            `json:"kind"`
	Validity  analysis.Validity        `json:"validity"`
	Warnings  []analysis.WarningCode   `json:"warnings,omitempty"`
	ElapsedMs int64                    `json:"elapsed_ms"`
}

// ExclusionNote is one audited exclusion, kept as a bounded sample
type ExclusionNote struct {
	Stage  string `json:"stage"`
	Row    int    `json:"row,omitempty"`
	Detail string `json:"detail"`
}

// Report is the structured audit record for one pipeline run
type Report struct {
	RunID           core.RunID            `json:"run_id"`
	Fingerprint     core.InputFingerprint `json:"input_fingerprint,omitempty"`
	Status          Status                `json:"status"`
	StartedAt       core.Timestamp        `json:"started_at"`
	CompletedAt     *core.Timestamp       `json:"completed_at,omitempty"`
	Counts          Counts                `json:"counts"`
	Analyses        []AnalysisOutcome     `json:"analyses,omitempty"`
	Exclusions      []ExclusionNote       `json:"exclusions,omitempty"`
	ExclusionsTotal int                   `json:"exclusions_total"`
	TierBreakpoints []float64             `json:"tier_breakpoints,omitempty"`
	FatalError      string                `json:"fatal_error,omitempty"`
}

// NewReport starts the audit record for a run
func NewReport(runID core.RunID) *Report {
	return &Report{
		RunID:     runID,
		Status:    StatusRunning,
		StartedAt: core.Now(),
	}
}

// AddExclusion records an audited exclusion, keeping only a bounded sample
func (r *Report) AddExclusion(stage string, row int, detail string) {
	r.ExclusionsTotal++
	if len(r.Exclusions) >= MaxExclusionNotes {
		return
	}
	r.Exclusions = append(r.Exclusions, ExclusionNote{Stage: stage, Row: row, Detail: detail})
}

// RecordAnalysis appends one analysis outcome line
func (r *Report) RecordAnalysis(result analysis.StatisticalResult) {
	r.Analyses = append(r.Analyses, AnalysisOutcome{
		Name:      result.Name,
		Kind:      result.Kind,
		Validity:  result.Validity,
		Warnings:  result.Warnings,
		ElapsedMs: result.ElapsedMs,
	})
}

// Complete marks the run finished
func (r *Report) Complete() {
	now := core.Now()
	r.CompletedAt = &now
	r.Status = StatusCompleted
}

// Fail marks the run fatally failed with the unmet precondition
func (r *Report) Fail(err error) {
	now := core.Now()
	r.CompletedAt = &now
	r.Status = StatusFailed
	if err != nil {
		r.FatalError = err.Error()
	}
}

// DurationMs returns wall time for completed runs, zero otherwise
func (r *Report) DurationMs() int64 {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Time().Sub(r.StartedAt.Time()).Milliseconds()
}
