package ports

import (
	"context"

	"grantlens/domain/core"
	"grantlens/domain/outcomes"
	"grantlens/internal/features"
	"grantlens/internal/normalize"
)

// GrantSource reads the raw grant extract at pipeline start. Rows come
// back unparsed; the normalizer owns all interpretation.
type GrantSource interface {
	ReadGrants(ctx context.Context) ([]normalize.RawGrant, error)
}

// PopulationSource reads the geography->population reference table
type PopulationSource interface {
	ReadPopulation(ctx context.Context) ([]features.PopulationEntry, error)
}

// OutcomeQuery parameterizes an outcome-metrics pull
type OutcomeQuery struct {
	Metrics  []outcomes.Metric
	States   []string
	YearFrom core.FiscalYear
	YearTo   core.FiscalYear
}

// OutcomeSource retrieves raw health-metric observations, either from the
// external metrics service or a local extract. Suppression indicators
// from the source must survive into the raw rows.
type OutcomeSource interface {
	FetchOutcomes(ctx context.Context, query OutcomeQuery) ([]normalize.RawOutcome, error)
}
