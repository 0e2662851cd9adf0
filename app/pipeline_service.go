package app

import (
	"context"
	"fmt"

	"grantlens/domain/analysis"
	"grantlens/domain/core"
	domaingeo "grantlens/domain/geo"
	"grantlens/domain/run"
	"grantlens/domain/table"
	internal "grantlens/internal"
	"grantlens/internal/config"
	"grantlens/internal/features"
	geo "grantlens/internal/geo"
	"grantlens/internal/inference/engine"
	"grantlens/internal/merge"
	"grantlens/internal/normalize"
	"grantlens/ports"
)

// RunRequest parameterizes one pipeline run
type RunRequest struct {
	Battery *config.Battery
	Query   ports.OutcomeQuery
}

// PipelineService executes the five pipeline stages in order: ingest,
// normalize, resolve, merge, features, analysis, and artifact output.
// The service owns the run report and is its only writer.
type PipelineService struct {
	grants     ports.GrantSource
	outcomes   ports.OutcomeSource
	population ports.PopulationSource
	store      ports.ArtifactStore // nil disables persistence
	exporters  []ports.Exporter

	resolver *geo.Resolver
	engineer *features.Engineer
	engine   *engine.Engine
	logger   *internal.Logger
}

// NewPipelineService wires the pipeline's collaborators
func NewPipelineService(
	grantSource ports.GrantSource,
	outcomeSource ports.OutcomeSource,
	populationSource ports.PopulationSource,
	store ports.ArtifactStore,
	exporters []ports.Exporter,
	resolver *geo.Resolver,
	engineer *features.Engineer,
	eng *engine.Engine,
	logger *internal.Logger,
) *PipelineService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &PipelineService{
		grants:     grantSource,
		outcomes:   outcomeSource,
		population: populationSource,
		store:      store,
		exporters:  exporters,
		resolver:   resolver,
		engineer:   engineer,
		engine:     eng,
		logger:     logger.Component("Pipeline"),
	}
}

// Run executes one full pipeline run. Recoverable input problems are
// collected into the report; only errors that compromise the whole
// canonical table fail the run. Either way the report reaches the store
// when persistence is enabled.
func (s *PipelineService) Run(ctx context.Context, req RunRequest) (ports.RunArtifacts, error) {
	report := run.NewReport(core.NewRunID())
	artifacts := ports.RunArtifacts{Report: report}
	s.logger.Info("run %s started", report.RunID)

	rows, results, err := s.execute(ctx, req, report)
	if err != nil {
		report.Fail(err)
		s.persistReport(ctx, report)
		return artifacts, err
	}

	artifacts.Rows = rows
	artifacts.Results = results
	report.Complete()

	if s.store != nil {
		if err := s.persist(ctx, report, rows, results); err != nil {
			report.Fail(err)
			s.persistReport(ctx, report)
			return artifacts, err
		}
	}
	for _, exporter := range s.exporters {
		if err := exporter.Export(ctx, artifacts); err != nil {
			return artifacts, fmt.Errorf("export artifacts: %w", err)
		}
	}

	s.logger.Info("run %s completed: %d rows, %d analyses, %d exclusions",
		report.RunID, len(rows), len(results), report.ExclusionsTotal)
	return artifacts, nil
}

func (s *PipelineService) execute(ctx context.Context, req RunRequest, report *run.Report) ([]table.FeatureRow, []analysis.StatisticalResult, error) {
	// Stage 1: ingest
	rawGrants, err := s.grants.ReadGrants(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read grants: %w", err)
	}
	report.Counts.GrantRowsIn = len(rawGrants)

	popEntries, err := s.population.ReadPopulation(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: population reference: %v", core.ErrMissingReference, err)
	}
	popTable := features.NewPopulationTable(popEntries)

	// Stage 2: fetch outcomes, once per run
	rawOutcomes, err := s.outcomes.FetchOutcomes(ctx, req.Query)
	if err != nil {
		return nil, nil, err
	}
	report.Counts.OutcomeRowsIn = len(rawOutcomes)
	s.logger.Info("ingested %d grant rows, %d outcome rows, %d population entries",
		len(rawGrants), len(rawOutcomes), len(popEntries))

	// Stage 3: normalize, collecting rejects instead of aborting
	grantResult := normalize.NormalizeGrants(rawGrants)
	report.Counts.MalformedGrants = len(grantResult.Errors)
	report.Counts.UnmappedCategories = grantResult.UnmappedCategories
	for _, recErr := range grantResult.Errors {
		report.AddExclusion("normalize_grants", recErr.Row, recErr.Error())
	}

	outcomeResult := normalize.NormalizeOutcomes(rawOutcomes)
	report.Counts.MalformedOutcomes = len(outcomeResult.Errors)
	report.Counts.SuppressedOutcomes = outcomeResult.Suppressed
	for _, recErr := range outcomeResult.Errors {
		report.AddExclusion("normalize_outcomes", recErr.Row, recErr.Error())
	}

	// Stage 4: resolve geographies; unresolved rows are excluded and audited
	locatedGrants := make([]merge.LocatedGrant, 0, len(grantResult.Records))
	for _, record := range grantResult.Records {
		resolution := s.resolver.Resolve(record.RawGeography)
		if !resolution.IsResolved() {
			s.countResolutionMiss(report, "resolve_grants", record.RawGeography, resolution)
			continue
		}
		locatedGrants = append(locatedGrants, merge.LocatedGrant{Grant: record, Geography: resolution.Geography})
	}

	locatedOutcomes := make([]merge.LocatedOutcome, 0, len(outcomeResult.Records))
	for _, record := range outcomeResult.Records {
		resolution := s.resolver.Resolve(record.RawGeography)
		if !resolution.IsResolved() {
			s.countResolutionMiss(report, "resolve_outcomes", record.RawGeography, resolution)
			continue
		}
		locatedOutcomes = append(locatedOutcomes, merge.LocatedOutcome{Outcome: record, Geography: resolution.Geography})
	}

	// Stage 5: merge
	mergedRows, mergeReport := merge.Merge(locatedGrants, locatedOutcomes)
	report.Counts.MergedRows = mergeReport.MergedRows
	report.Counts.MatchedRows = mergeReport.MatchedRows
	report.Counts.UnmatchedGrantRows = mergeReport.UnmatchedGrantRows
	report.Counts.UnmatchedOutcomeRows = mergeReport.UnmatchedOutcomeRows
	report.Counts.DuplicateOutcomes = mergeReport.DuplicateOutcomes
	s.logger.Info("merged %d rows (%d matched, %d grant-only, %d outcome-only)",
		mergeReport.MergedRows, mergeReport.MatchedRows,
		mergeReport.UnmatchedOutcomeRows, mergeReport.UnmatchedGrantRows)

	// Stage 6: features
	featureRows, featureReport, err := s.engineer.Compute(mergedRows, popTable)
	if err != nil {
		return nil, nil, err
	}
	report.Counts.PopulationMisses = featureReport.PopulationMisses
	report.TierBreakpoints = featureReport.TierBreakpoints
	for _, note := range featureReport.MissNotes {
		report.AddExclusion("features", 0, note)
	}

	// Stage 7: analysis battery over the immutable feature snapshot
	results, err := s.engine.Run(ctx, report.RunID, req.Battery.Analyses, featureRows)
	if err != nil {
		return nil, nil, err
	}
	for _, result := range results {
		report.RecordAnalysis(result)
	}

	report.Fingerprint = fingerprint(rawGrants, rawOutcomes)
	return featureRows, results, nil
}

func (s *PipelineService) countResolutionMiss(report *run.Report, stage, raw string, resolution domaingeo.Resolution) {
	if resolution.Status == domaingeo.StatusAmbiguous {
		report.Counts.AmbiguousGeographies++
	} else {
		report.Counts.UnresolvedGeographies++
	}
	report.AddExclusion(stage, 0, fmt.Sprintf("%q: %s", raw, resolution.Reason))
}

func (s *PipelineService) persist(ctx context.Context, report *run.Report, rows []table.FeatureRow, results []analysis.StatisticalResult) error {
	if err := s.store.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("persist run report: %w", err)
	}
	if err := s.store.SaveFeatureRows(ctx, report.RunID, rows); err != nil {
		return fmt.Errorf("persist feature rows: %w", err)
	}
	if err := s.store.SaveResults(ctx, results); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	return nil
}

// persistReport saves a failed run's report on a best-effort basis so the
// failure itself is auditable
func (s *PipelineService) persistReport(ctx context.Context, report *run.Report) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveReport(ctx, report); err != nil {
		s.logger.Error("could not persist failed run report: %v", err)
	}
}

// fingerprint identifies the exact inputs a run consumed
func fingerprint(rawGrants []normalize.RawGrant, rawOutcomes []normalize.RawOutcome) core.InputFingerprint {
	return core.ComputeInputFingerprint(map[string]string{
		"grants":   fmt.Sprintf("%v", rawGrants),
		"outcomes": fmt.Sprintf("%v", rawOutcomes),
	})
}
