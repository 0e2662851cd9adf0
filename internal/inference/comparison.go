package inference

import (
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"grantlens/domain/analysis"
	"grantlens/domain/table"
)

// GroupComparison runs a one-way ANOVA of the outcome variable across the
// grouping variable's levels. Groups below the minimum size are dropped
// from the test but still summarized; if fewer than two groups survive,
// the result carries validity insufficient_sample and no statistic.
func GroupComparison(spec analysis.Spec, rows []table.FeatureRow) analysis.StatisticalResult {
	result := analysis.NewResult(spec)

	cases, excluded := extractGrouped(rows, spec.GroupBy, spec.Outcome)
	result.ExcludedRows = excluded

	byGroup := make(map[string][]float64)
	for _, c := range cases {
		byGroup[c.group] = append(byGroup[c.group], c.value)
	}

	names := make([]string, 0, len(byGroup))
	for name := range byGroup {
		names = append(names, name)
	}
	sort.Strings(names)

	minSize := spec.EffectiveMinGroupSize()
	var tested [][]float64
	testedN := 0
	for _, name := range names {
		values := byGroup[name]
		mean, _ := stats.Mean(values)
		sd := 0.0
		if len(values) > 1 {
			sd, _ = stats.StandardDeviationSample(values)
		}
		result.Groups = append(result.Groups, analysis.GroupSummary{
			Group:  name,
			N:      len(values),
			Mean:   mean,
			StdDev: sd,
		})

		if len(values) < minSize {
			result.Warn(analysis.WarningGroupDropped)
			continue
		}
		tested = append(tested, values)
		testedN += len(values)
	}

	if len(tested) < 2 {
		result.Validity = analysis.ValidityInsufficientSample
		return result
	}
	result.SampleSize = testedN
	if testedN < LowNThreshold {
		result.Warn(analysis.WarningLowN)
	}
	if excluded > 0 && float64(excluded)/float64(excluded+len(cases)) > HighMissingShare {
		result.Warn(analysis.WarningHighMissing)
	}
	if unbalanced(tested) {
		result.Warn(analysis.WarningUnbalancedGroups)
	}

	fStat, etaSq, ok := oneWayANOVA(tested, testedN)
	if !ok {
		result.Validity = analysis.ValidityDegenerate
		result.Warn(analysis.WarningZeroVariance)
		return result
	}

	d1 := float64(len(tested) - 1)
	d2 := float64(testedN - len(tested))
	p := distuv.F{D1: d1, D2: d2}.Survival(fStat)

	result.Statistic = analysis.FloatPtr(fStat)
	result.PValue = analysis.FloatPtr(p)
	result.EffectSize = analysis.FloatPtr(etaSq)
	result.EffectLabel = etaSquaredLabel(etaSq)
	return result
}

// oneWayANOVA computes the F statistic and eta squared for the given
// groups. Returns ok=false when within-group variance is zero, which
// leaves F undefined.
func oneWayANOVA(groups [][]float64, n int) (fStat, etaSq float64, ok bool) {
	grandSum := 0.0
	for _, g := range groups {
		for _, v := range g {
			grandSum += v
		}
	}
	grandMean := grandSum / float64(n)

	ssBetween := 0.0
	ssWithin := 0.0
	for _, g := range groups {
		mean, _ := stats.Mean(g)
		diff := mean - grandMean
		ssBetween += float64(len(g)) * diff * diff
		for _, v := range g {
			d := v - mean
			ssWithin += d * d
		}
	}

	if ssWithin == 0 {
		return 0, 0, false
	}

	msBetween := ssBetween / float64(len(groups)-1)
	msWithin := ssWithin / float64(n-len(groups))
	ssTotal := ssBetween + ssWithin
	if ssTotal == 0 {
		return 0, 0, false
	}
	return msBetween / msWithin, ssBetween / ssTotal, true
}

// unbalanced reports whether the largest tested group exceeds five times
// the smallest
func unbalanced(groups [][]float64) bool {
	smallest, largest := len(groups[0]), len(groups[0])
	for _, g := range groups[1:] {
		if len(g) < smallest {
			smallest = len(g)
		}
		if len(g) > largest {
			largest = len(g)
		}
	}
	return largest > 5*smallest
}

// etaSquaredLabel applies the conventional eta-squared magnitude cuts
func etaSquaredLabel(etaSq float64) string {
	switch {
	case etaSq >= 0.14:
		return "large"
	case etaSq >= 0.06:
		return "medium"
	case etaSq >= 0.01:
		return "small"
	}
	return "negligible"
}
