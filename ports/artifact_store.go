package ports

import (
	"context"

	"grantlens/domain/analysis"
	"grantlens/domain/core"
	"grantlens/domain/run"
	"grantlens/domain/table"
)

// ArtifactStore persists the durable outputs of a run: the feature table,
// the statistical results, and the audit report. Stored artifacts are
// never mutated after the run completes.
type ArtifactStore interface {
	SaveReport(ctx context.Context, report *run.Report) error
	SaveFeatureRows(ctx context.Context, runID core.RunID, rows []table.FeatureRow) error
	SaveResults(ctx context.Context, results []analysis.StatisticalResult) error
	GetReport(ctx context.Context, runID core.RunID) (*run.Report, error)
	GetResults(ctx context.Context, runID core.RunID) ([]analysis.StatisticalResult, error)
}

// RunArtifacts bundles everything one run produced for export
type RunArtifacts struct {
	Report  *run.Report
	Rows    []table.FeatureRow
	Results []analysis.StatisticalResult
}

// Exporter writes run artifacts to a downstream consumable form (xlsx
// workbook, CSV mirrors, rendered report)
type Exporter interface {
	Export(ctx context.Context, artifacts RunArtifacts) error
}
