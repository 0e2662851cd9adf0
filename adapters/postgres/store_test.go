package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"grantlens/domain/analysis"
	"grantlens/domain/core"
	"grantlens/domain/run"
)

func mockStore(t *testing.T) (*artifactStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &artifactStore{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func TestSaveReportUpserts(t *testing.T) {
	store, mock := mockStore(t)

	report := run.NewReport(core.NewRunID())
	report.Counts.GrantRowsIn = 120
	report.Counts.MergedRows = 60
	report.AddExclusion("normalize_grants", 14, "amount not numeric")
	report.TierBreakpoints = []float64{10, 20, 30}
	report.Complete()

	mock.ExpectExec("INSERT INTO runs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SaveReport(context.Background(), report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveResultsWritesNullsForMissingStatistics(t *testing.T) {
	store, mock := mockStore(t)

	runID := core.NewRunID()
	ok := analysis.StatisticalResult{
		ID:         core.NewAnalysisID(),
		RunID:      runID,
		Name:       "tier_vs_mortality",
		Kind:       analysis.KindGroupComparison,
		Validity:   analysis.ValidityOK,
		SampleSize: 40,
		Statistic:  analysis.FloatPtr(13.0),
		PValue:     analysis.FloatPtr(0.001),
		QValue:     analysis.FloatPtr(0.003),
		EffectSize: analysis.FloatPtr(0.81),
	}
	degenerate := analysis.StatisticalResult{
		ID:       core.NewAnalysisID(),
		RunID:    runID,
		Name:     "flat",
		Kind:     analysis.KindRegression,
		Validity: analysis.ValidityDegenerate,
	}

	okPayload, _ := json.Marshal(ok)
	degPayload, _ := json.Marshal(degenerate)

	mock.ExpectExec("INSERT INTO results").
		WithArgs(ok.ID.String(), runID.String(), "tier_vs_mortality", "group_comparison",
			"ok", 40, 0, 13.0, 0.001, 0.003, 0.81, okPayload).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO results").
		WithArgs(degenerate.ID.String(), runID.String(), "flat", "regression",
			"degenerate", 0, 0, nil, nil, nil, nil, degPayload).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SaveResults(context.Background(), []analysis.StatisticalResult{ok, degenerate})
	if err != nil {
		t.Fatalf("SaveResults: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetReportRoundTripsAuditFields(t *testing.T) {
	store, mock := mockStore(t)

	runID := core.NewRunID()
	counts := run.Counts{GrantRowsIn: 120, MergedRows: 60, MatchedRows: 45, UnmatchedGrantRows: 10, UnmatchedOutcomeRows: 5}
	countsJSON, _ := json.Marshal(counts)
	analysesJSON, _ := json.Marshal([]run.AnalysisOutcome{{Name: "a", Kind: analysis.KindRegression, Validity: analysis.ValidityOK}})
	exclusionsJSON, _ := json.Marshal([]run.ExclusionNote{{Stage: "normalize_grants", Row: 14, Detail: "amount not numeric"}})
	breakpointsJSON, _ := json.Marshal([]float64{10, 20, 30})
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(40 * time.Second)

	mock.ExpectQuery("SELECT").
		WithArgs(runID.String()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "fingerprint", "status", "started_at", "completed_at",
			"counts", "analyses", "exclusions", "exclusions_total", "tier_breakpoints", "fatal_error",
		}).AddRow(runID.String(), "abc123", "completed", started, completed,
			countsJSON, analysesJSON, exclusionsJSON, 3, breakpointsJSON, ""))

	report, err := store.GetReport(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}

	if report.RunID != runID || report.Status != run.StatusCompleted {
		t.Errorf("identity fields: %+v", report)
	}
	if report.Counts != counts {
		t.Errorf("counts = %+v, want %+v", report.Counts, counts)
	}
	if !report.Counts.Conserved() {
		t.Error("stored counts must still satisfy merge conservation")
	}
	if len(report.Analyses) != 1 || report.Analyses[0].Name != "a" {
		t.Errorf("analyses = %+v", report.Analyses)
	}
	if report.ExclusionsTotal != 3 || len(report.Exclusions) != 1 {
		t.Errorf("exclusions = %d/%d", report.ExclusionsTotal, len(report.Exclusions))
	}
	if len(report.TierBreakpoints) != 3 || report.TierBreakpoints[1] != 20 {
		t.Errorf("tier breakpoints = %v", report.TierBreakpoints)
	}
	if report.CompletedAt == nil || report.DurationMs() != 40000 {
		t.Errorf("duration = %d", report.DurationMs())
	}
}

func TestGetReportUnknownRun(t *testing.T) {
	store, mock := mockStore(t)

	runID := core.NewRunID()
	mock.ExpectQuery("SELECT").
		WithArgs(runID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetReport(context.Background(), runID)
	if !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestGetResultsDecodesPayloads(t *testing.T) {
	store, mock := mockStore(t)

	runID := core.NewRunID()
	first := analysis.StatisticalResult{Name: "alpha", Kind: analysis.KindRegression, Validity: analysis.ValidityOK}
	second := analysis.StatisticalResult{Name: "beta", Kind: analysis.KindClustering, Validity: analysis.ValidityInsufficientRows}
	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)

	mock.ExpectQuery("SELECT payload FROM results").
		WithArgs(runID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(firstJSON).AddRow(secondJSON))

	results, err := store.GetResults(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Name != "alpha" || results[1].Validity != analysis.ValidityInsufficientRows {
		t.Errorf("decoded results = %+v", results)
	}
}
