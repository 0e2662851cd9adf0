package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantlens/domain/analysis"
	"grantlens/domain/core"
	"grantlens/domain/run"
	"grantlens/domain/table"
	"grantlens/internal/config"
	"grantlens/internal/features"
	"grantlens/internal/geo"
	"grantlens/internal/inference/engine"
	"grantlens/internal/normalize"
	"grantlens/ports"
)

// ============================================================================
// PORT FAKES
// ============================================================================

type fakeGrantSource struct {
	raws []normalize.RawGrant
	err  error
}

func (f *fakeGrantSource) ReadGrants(ctx context.Context) ([]normalize.RawGrant, error) {
	return f.raws, f.err
}

type fakeOutcomeSource struct {
	raws  []normalize.RawOutcome
	err   error
	calls int
}

func (f *fakeOutcomeSource) FetchOutcomes(ctx context.Context, query ports.OutcomeQuery) ([]normalize.RawOutcome, error) {
	f.calls++
	return f.raws, f.err
}

type fakePopulationSource struct {
	entries []features.PopulationEntry
	err     error
}

func (f *fakePopulationSource) ReadPopulation(ctx context.Context) ([]features.PopulationEntry, error) {
	return f.entries, f.err
}

type fakeStore struct {
	reports     []*run.Report
	savedRows   []table.FeatureRow
	savedResult []analysis.StatisticalResult
}

func (f *fakeStore) SaveReport(ctx context.Context, report *run.Report) error {
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeStore) SaveFeatureRows(ctx context.Context, runID core.RunID, rows []table.FeatureRow) error {
	f.savedRows = rows
	return nil
}

func (f *fakeStore) SaveResults(ctx context.Context, results []analysis.StatisticalResult) error {
	f.savedResult = results
	return nil
}

func (f *fakeStore) GetReport(ctx context.Context, runID core.RunID) (*run.Report, error) {
	return nil, core.ErrRunNotFound
}

func (f *fakeStore) GetResults(ctx context.Context, runID core.RunID) ([]analysis.StatisticalResult, error) {
	return nil, nil
}

type fakeExporter struct {
	exported *ports.RunArtifacts
}

func (f *fakeExporter) Export(ctx context.Context, artifacts ports.RunArtifacts) error {
	f.exported = &artifacts
	return nil
}

// ============================================================================
// FIXTURES
// ============================================================================

func testGrants() []normalize.RawGrant {
	return []normalize.RawGrant{
		{Row: 2, Grantee: "CA Dept of Public Health", Program: "prenatal care", Amount: "$100,000.00", FiscalYear: "2021", Geography: "California", Class: "state_agency"},
		{Row: 3, Grantee: "LA County Clinic", Program: "nutrition support", Amount: "50000", FiscalYear: "2021", Geography: "CA", Class: "nonprofit"},
		{Row: 4, Grantee: "TX Health Coalition", Program: "prenatal care", Amount: "75000", FiscalYear: "2021", Geography: "TX", Class: "nonprofit"},
		{Row: 5, Grantee: "Bad Row Org", Program: "prenatal care", Amount: "a lot", FiscalYear: "2021", Geography: "CA", Class: "nonprofit"},
		{Row: 6, Grantee: "Nowhere Org", Program: "prenatal care", Amount: "10000", FiscalYear: "2021", Geography: "Atlantis", Class: "nonprofit"},
	}
}

func testOutcomes() []normalize.RawOutcome {
	reported := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	return []normalize.RawOutcome{
		{Row: 1, Geography: "CA", Year: 2021, Metric: "infant_mortality_rate", Value: "4.2", ReportedAt: reported},
		{Row: 2, Geography: "NY", Year: 2021, Metric: "infant_mortality_rate", Value: "0", ReportedAt: reported},
		{Row: 3, Geography: "CA", Year: 2021, Metric: "maternal_mortality_rate", Value: "", Suppressed: true, ReportedAt: reported},
	}
}

func testPopulation() []features.PopulationEntry {
	return []features.PopulationEntry{
		{StateFIPS: "06", Year: 2021, Population: 39_000_000},
		{StateFIPS: "48", Year: 2021, Population: 29_000_000},
		{StateFIPS: "36", Year: 2021, Population: 19_000_000},
	}
}

func testBattery() *config.Battery {
	return &config.Battery{Analyses: []analysis.Spec{
		{
			Name:    "tier_vs_infant_mortality",
			Kind:    analysis.KindGroupComparison,
			Outcome: "infant_mortality_rate",
			GroupBy: "funding_tier",
		},
	}}
}

func newTestService(grants *fakeGrantSource, outcomes *fakeOutcomeSource, population *fakePopulationSource, store ports.ArtifactStore, exporters ...ports.Exporter) *PipelineService {
	return NewPipelineService(
		grants, outcomes, population, store, exporters,
		geo.NewResolver(2),
		features.NewEngineer(features.Config{}),
		engine.New(engine.Options{MaxConcurrency: 2}),
		nil,
	)
}

// ============================================================================
// TESTS
// ============================================================================

func TestPipelineRunAuditsEveryExclusion(t *testing.T) {
	store := &fakeStore{}
	exporter := &fakeExporter{}
	outcomes := &fakeOutcomeSource{raws: testOutcomes()}
	svc := newTestService(&fakeGrantSource{raws: testGrants()}, outcomes, &fakePopulationSource{entries: testPopulation()}, store, exporter)

	artifacts, err := svc.Run(context.Background(), RunRequest{Battery: testBattery()})
	require.NoError(t, err)

	report := artifacts.Report
	assert.Equal(t, run.StatusCompleted, report.Status)
	assert.Equal(t, 5, report.Counts.GrantRowsIn)
	assert.Equal(t, 3, report.Counts.OutcomeRowsIn)
	assert.Equal(t, 1, report.Counts.MalformedGrants, "the unparseable amount")
	assert.Equal(t, 1, report.Counts.UnresolvedGeographies, "Atlantis")
	assert.Equal(t, 1, report.Counts.SuppressedOutcomes)
	assert.True(t, report.Counts.Conserved(), "matched + unmatched must equal merged")

	// CA and TX have grants; CA and NY have outcomes. One key matches,
	// one is grant-only, one outcome-only.
	assert.Equal(t, 3, report.Counts.MergedRows)
	assert.Equal(t, 1, report.Counts.MatchedRows)
	assert.Equal(t, 1, report.Counts.UnmatchedGrantRows)
	assert.Equal(t, 1, report.Counts.UnmatchedOutcomeRows)

	// Exclusions carry audit detail for each rejected row
	assert.Equal(t, 2, report.ExclusionsTotal)
	stages := map[string]bool{}
	for _, note := range report.Exclusions {
		stages[note.Stage] = true
	}
	assert.True(t, stages["normalize_grants"])
	assert.True(t, stages["resolve_grants"])

	require.Len(t, artifacts.Rows, 3)
	require.Len(t, artifacts.Results, 1)
	assert.NotEmpty(t, report.Fingerprint)

	// Three rows cannot meet the minimum group size
	assert.Equal(t, analysis.ValidityInsufficientSample, artifacts.Results[0].Validity)
	require.Len(t, report.Analyses, 1)
	assert.Equal(t, "tier_vs_infant_mortality", report.Analyses[0].Name)

	assert.Equal(t, 1, outcomes.calls, "outcomes are fetched once per run")
}

func TestPipelineRunPersistsAndExports(t *testing.T) {
	store := &fakeStore{}
	exporter := &fakeExporter{}
	svc := newTestService(&fakeGrantSource{raws: testGrants()}, &fakeOutcomeSource{raws: testOutcomes()}, &fakePopulationSource{entries: testPopulation()}, store, exporter)

	artifacts, err := svc.Run(context.Background(), RunRequest{Battery: testBattery()})
	require.NoError(t, err)

	require.Len(t, store.reports, 1)
	assert.Equal(t, run.StatusCompleted, store.reports[0].Status)
	assert.Len(t, store.savedRows, 3)
	assert.Len(t, store.savedResult, 1)

	require.NotNil(t, exporter.exported)
	assert.Equal(t, artifacts.Report.RunID, exporter.exported.Report.RunID)
}

func TestPipelineExplicitZeroSurvivesToFeatures(t *testing.T) {
	svc := newTestService(&fakeGrantSource{raws: testGrants()}, &fakeOutcomeSource{raws: testOutcomes()}, &fakePopulationSource{entries: testPopulation()}, nil)

	artifacts, err := svc.Run(context.Background(), RunRequest{Battery: testBattery()})
	require.NoError(t, err)

	var nyRow *table.FeatureRow
	for i := range artifacts.Rows {
		if artifacts.Rows[i].Geography.StateCode == "NY" {
			nyRow = &artifacts.Rows[i]
		}
	}
	require.NotNil(t, nyRow, "outcome-only NY row must survive the outer join")

	// A reported zero is a value; NY's absent grants are a true zero;
	// CA's suppressed metric stays missing
	value, present := nyRow.Outcome("infant_mortality_rate")
	assert.True(t, present)
	assert.Equal(t, 0.0, value)
	assert.Equal(t, 0.0, nyRow.Grants.TotalFunding)

	for _, row := range artifacts.Rows {
		if row.Geography.StateCode == "CA" {
			_, present := row.Outcome("maternal_mortality_rate")
			assert.False(t, present, "suppressed metric must stay missing")
		}
	}
}

func TestPipelineMissingPopulationIsFatal(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(&fakeGrantSource{raws: testGrants()}, &fakeOutcomeSource{raws: testOutcomes()}, &fakePopulationSource{err: errors.New("file unreadable")}, store)

	artifacts, err := svc.Run(context.Background(), RunRequest{Battery: testBattery()})
	require.Error(t, err)
	assert.True(t, core.IsFatalRunError(err))

	assert.Equal(t, run.StatusFailed, artifacts.Report.Status)
	assert.NotEmpty(t, artifacts.Report.FatalError)

	// The failed run's report still reaches the store
	require.Len(t, store.reports, 1)
	assert.Equal(t, run.StatusFailed, store.reports[0].Status)
}

func TestPipelineOutcomeFetchFailureIsFatal(t *testing.T) {
	fetchErr := core.NewExternalServiceError("health metrics", errors.New("retries exhausted"))
	svc := newTestService(&fakeGrantSource{raws: testGrants()}, &fakeOutcomeSource{err: fetchErr}, &fakePopulationSource{entries: testPopulation()}, nil)

	artifacts, err := svc.Run(context.Background(), RunRequest{Battery: testBattery()})
	require.Error(t, err)
	assert.True(t, core.IsFatalRunError(err))
	assert.Equal(t, run.StatusFailed, artifacts.Report.Status)
}
