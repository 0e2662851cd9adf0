package features

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"grantlens/domain/core"
	"grantlens/domain/grants"
	"grantlens/domain/outcomes"
	"grantlens/domain/table"
)

// DefaultTierLabels name the ordinal funding tiers from lowest to highest
var DefaultTierLabels = []string{"low", "moderate", "high", "very_high"}

// Outlier flag values attached to FeatureRow.OutlierFlags
const (
	FlagZScoreOutlier = "per_capita_zscore"
	FlagIQROutlier    = "per_capita_iqr"
)

// Config tunes the feature stage. Breakpoints left nil are derived from
// the quartiles of the observed per-capita distribution.
type Config struct {
	TierBreakpoints []float64
	TierLabels      []string
}

// Report is the feature stage's audit output
type Report struct {
	Rows             int
	PopulationMisses int
	MissNotes        []string
	TierBreakpoints  []float64
	TierSource       string // "configured" or "quartiles"
}

// Engineer derives equity variables from merged rows. It never mutates
// its input; every call returns freshly built FeatureRows.
type Engineer struct {
	cfg Config
}

// NewEngineer creates a feature engineer with the given configuration
func NewEngineer(cfg Config) *Engineer {
	if len(cfg.TierLabels) == 0 {
		cfg.TierLabels = DefaultTierLabels
	}
	return &Engineer{cfg: cfg}
}

// Compute derives the feature table from merged rows and the population
// reference. An entirely absent population table is fatal; a miss for a
// single funded geography only leaves that row's per-capita field nil and
// is counted in the report.
func (e *Engineer) Compute(rows []table.MergedRow, pop *PopulationTable) ([]table.FeatureRow, Report, error) {
	report := Report{Rows: len(rows)}
	if pop == nil || pop.Empty() {
		return nil, report, fmt.Errorf("%w: population table is empty", core.ErrMissingReference)
	}

	out := make([]table.FeatureRow, len(rows))
	for i, row := range rows {
		fr := table.FeatureRow{MergedRow: row}

		entry, ok := pop.Lookup(row.Geography.StateFIPS, row.Year)
		if !ok {
			report.PopulationMisses++
			if len(report.MissNotes) < 20 {
				report.MissNotes = append(report.MissNotes,
					fmt.Sprintf("no population for %s year %d", row.Geography.String(), row.Year))
			}
		} else {
			p := entry.Population
			fr.Population = &p
			pc := row.Grants.TotalFunding / p
			fr.PerCapitaFunding = &pc
			if len(entry.Covariates) > 0 {
				fr.Covariates = make(map[string]float64, len(entry.Covariates))
				for k, v := range entry.Covariates {
					fr.Covariates[k] = v
				}
			}
		}

		fr.ProgramShare = programShares(row.Grants)
		out[i] = fr
	}

	breaks, source, err := e.breakpoints(out)
	if err != nil {
		return nil, report, err
	}
	report.TierBreakpoints = breaks
	report.TierSource = source

	for i := range out {
		if out[i].PerCapitaFunding != nil {
			out[i].FundingTier = tierLabel(*out[i].PerCapitaFunding, breaks, e.cfg.TierLabels)
		}
	}

	attachOutcomeDeltas(out)
	attachOutlierFlags(out)
	return out, report, nil
}

// programShares computes each program's share of total funding for a row.
// Rows with zero funding carry no shares: a share of nothing is undefined,
// not zero.
func programShares(agg table.GrantAggregate) map[grants.ProgramType]float64 {
	if agg.TotalFunding <= 0 || len(agg.ProgramFunding) == 0 {
		return nil
	}
	shares := make(map[grants.ProgramType]float64, len(agg.ProgramFunding))
	for program, amount := range agg.ProgramFunding {
		shares[program] = amount / agg.TotalFunding
	}
	return shares
}

// breakpoints returns the tier cut points, configured or derived from the
// observed per-capita quartiles
func (e *Engineer) breakpoints(rows []table.FeatureRow) ([]float64, string, error) {
	if len(e.cfg.TierBreakpoints) > 0 {
		return e.cfg.TierBreakpoints, "configured", nil
	}

	values := perCapitaValues(rows)
	if len(values) < 4 {
		// Too few observations for quartiles; a single cut at the median
		// still yields an ordered two-tier split
		if len(values) == 0 {
			return nil, "quartiles", nil
		}
		median, err := stats.Median(values)
		if err != nil {
			return nil, "", err
		}
		return []float64{median}, "quartiles", nil
	}

	q, err := stats.Quartile(values)
	if err != nil {
		return nil, "", err
	}
	return []float64{q.Q1, q.Q2, q.Q3}, "quartiles", nil
}

func perCapitaValues(rows []table.FeatureRow) []float64 {
	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.PerCapitaFunding != nil {
			values = append(values, *r.PerCapitaFunding)
		}
	}
	return values
}

// tierLabel buckets a value against ordered breakpoints. With b
// breakpoints there are b+1 tiers; label lists shorter than that reuse
// the last label for the overflow tiers.
func tierLabel(value float64, breaks []float64, labels []string) string {
	if len(breaks) == 0 || len(labels) == 0 {
		return ""
	}
	tier := 0
	for _, cut := range breaks {
		if value > cut {
			tier++
		}
	}
	if tier >= len(labels) {
		tier = len(labels) - 1
	}
	return labels[tier]
}

// attachOutcomeDeltas computes each metric's unweighted national mean over
// rows where the metric is present, then stores each row's deviation from
// that mean. Suppressed values never contribute.
func attachOutcomeDeltas(rows []table.FeatureRow) {
	sums := make(map[outcomes.Metric]float64)
	counts := make(map[outcomes.Metric]int)
	for _, r := range rows {
		for metric := range r.Outcomes {
			if v, ok := r.Outcome(metric); ok {
				sums[metric] += v
				counts[metric]++
			}
		}
	}

	means := make(map[outcomes.Metric]float64, len(sums))
	for metric, sum := range sums {
		means[metric] = sum / float64(counts[metric])
	}

	for i := range rows {
		for metric := range rows[i].Outcomes {
			v, ok := rows[i].Outcome(metric)
			if !ok {
				continue
			}
			if rows[i].OutcomeDeltas == nil {
				rows[i].OutcomeDeltas = make(map[outcomes.Metric]float64)
			}
			rows[i].OutcomeDeltas[metric] = v - means[metric]
		}
	}
}

// attachOutlierFlags flags per-capita funding outliers under both the
// z-score (|z| > 3) and 1.5x IQR rules
func attachOutlierFlags(rows []table.FeatureRow) {
	values := perCapitaValues(rows)
	if len(values) < 4 {
		return
	}

	mean, _ := stats.Mean(values)
	sd, _ := stats.StandardDeviationSample(values)
	q, qerr := stats.Quartile(values)
	iqr := q.Q3 - q.Q1

	for i := range rows {
		if rows[i].PerCapitaFunding == nil {
			continue
		}
		v := *rows[i].PerCapitaFunding
		if sd > 0 && math.Abs((v-mean)/sd) > 3 {
			rows[i].OutlierFlags = append(rows[i].OutlierFlags, FlagZScoreOutlier)
		}
		if qerr == nil && iqr > 0 && (v < q.Q1-1.5*iqr || v > q.Q3+1.5*iqr) {
			rows[i].OutlierFlags = append(rows[i].OutlierFlags, FlagIQROutlier)
		}
	}
}
