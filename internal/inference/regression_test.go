package inference

import (
	"math"
	"testing"

	"grantlens/domain/analysis"
	"grantlens/domain/geo"
	"grantlens/domain/table"
)

// covRow builds a feature row from a named-variable map
func covRow(i int, vars map[string]float64) table.FeatureRow {
	return table.FeatureRow{
		MergedRow: table.MergedRow{
			Geography: geo.CanonicalGeography{StateFIPS: "06", StateCode: "CA", Name: "California"},
			Year:      2021,
		},
		Covariates: vars,
	}
}

func TestSimpleRegressionRecoversLine(t *testing.T) {
	spec := analysis.Spec{
		Name:       "mortality_vs_funding",
		Kind:       analysis.KindRegression,
		Outcome:    "y",
		Predictors: []string{"x"},
	}

	// y = 2 + 3x with mild noise
	noise := []float64{0.1, -0.2, 0.15, -0.05, 0.0, 0.1, -0.1, 0.05, -0.15, 0.1}
	rows := make([]table.FeatureRow, len(noise))
	for i := range noise {
		x := float64(i)
		rows[i] = covRow(i, map[string]float64{"x": x, "y": 2 + 3*x + noise[i]})
	}

	result := Regression(spec, rows)
	if result.Validity != analysis.ValidityOK {
		t.Fatalf("validity = %s", result.Validity)
	}
	if len(result.Coefficients) != 2 {
		t.Fatalf("coefficients = %d, want intercept + slope", len(result.Coefficients))
	}

	slope := result.Coefficients[1]
	if slope.Name != "x" {
		t.Errorf("slope name = %q", slope.Name)
	}
	if math.Abs(slope.Estimate-3.0) > 0.1 {
		t.Errorf("slope = %v, want ~3", slope.Estimate)
	}
	if slope.PValue > 1e-6 {
		t.Errorf("slope p = %v, want tiny", slope.PValue)
	}
	if result.EffectSize == nil || *result.EffectSize < 0.99 {
		t.Errorf("r squared = %v, want near 1", result.EffectSize)
	}
}

func TestMultipleRegressionRecoversPlane(t *testing.T) {
	spec := analysis.Spec{
		Name:       "plane",
		Kind:       analysis.KindRegression,
		Outcome:    "y",
		Predictors: []string{"x1", "x2"},
	}

	noise := []float64{0.05, -0.1, 0.08, -0.03, 0.0, 0.06, -0.07, 0.02, -0.09, 0.04, 0.01, -0.02}
	rows := make([]table.FeatureRow, len(noise))
	for i := range noise {
		x1 := float64(i)
		x2 := float64(i%4) * 2.5
		rows[i] = covRow(i, map[string]float64{
			"x1": x1,
			"x2": x2,
			"y":  1 + 2*x1 - 0.5*x2 + noise[i],
		})
	}

	result := Regression(spec, rows)
	if result.Validity != analysis.ValidityOK {
		t.Fatalf("validity = %s", result.Validity)
	}
	if len(result.Coefficients) != 3 {
		t.Fatalf("coefficients = %d, want 3", len(result.Coefficients))
	}

	estimates := map[string]float64{}
	for _, c := range result.Coefficients {
		estimates[c.Name] = c.Estimate
	}
	if math.Abs(estimates["intercept"]-1.0) > 0.2 {
		t.Errorf("intercept = %v, want ~1", estimates["intercept"])
	}
	if math.Abs(estimates["x1"]-2.0) > 0.05 {
		t.Errorf("x1 = %v, want ~2", estimates["x1"])
	}
	if math.Abs(estimates["x2"]+0.5) > 0.05 {
		t.Errorf("x2 = %v, want ~-0.5", estimates["x2"])
	}
}

// The excluded-row count must equal exactly the number of rows missing at
// least one model variable.
func TestRegressionListwiseDeletionCount(t *testing.T) {
	spec := analysis.Spec{
		Name:       "listwise",
		Kind:       analysis.KindRegression,
		Outcome:    "y",
		Predictors: []string{"x"},
	}

	rows := []table.FeatureRow{
		covRow(0, map[string]float64{"x": 1, "y": 3}),
		covRow(1, map[string]float64{"x": 2, "y": 5}),
		covRow(2, map[string]float64{"x": 3, "y": 7.1}),
		covRow(3, map[string]float64{"x": 4, "y": 8.9}),
		covRow(4, map[string]float64{"x": 5}),           // missing y
		covRow(5, map[string]float64{"y": 4}),           // missing x
		covRow(6, map[string]float64{}),                 // missing both
		covRow(7, map[string]float64{"x": 6, "y": 13.2}),
	}

	result := Regression(spec, rows)
	if result.ExcludedRows != 3 {
		t.Errorf("excluded = %d, want 3", result.ExcludedRows)
	}
	if result.SampleSize != 5 {
		t.Errorf("n = %d, want 5", result.SampleSize)
	}
	if !hasWarning(result, analysis.WarningHighMissing) {
		t.Errorf("expected HIGH_MISSING at 3/8 excluded, got %v", result.Warnings)
	}
}

func TestRegressionTooFewRows(t *testing.T) {
	spec := analysis.Spec{
		Name:       "tiny",
		Kind:       analysis.KindRegression,
		Outcome:    "y",
		Predictors: []string{"x1", "x2"},
	}
	rows := []table.FeatureRow{
		covRow(0, map[string]float64{"x1": 1, "x2": 2, "y": 3}),
		covRow(1, map[string]float64{"x1": 2, "x2": 1, "y": 4}),
	}

	result := Regression(spec, rows)
	if result.Validity != analysis.ValidityInsufficientRows {
		t.Fatalf("validity = %s, want insufficient_rows", result.Validity)
	}
	if result.Statistic != nil {
		t.Error("no statistic on an underdetermined design")
	}
}

func TestRegressionZeroVariancePredictor(t *testing.T) {
	spec := analysis.Spec{
		Name:       "flat",
		Kind:       analysis.KindRegression,
		Outcome:    "y",
		Predictors: []string{"x"},
	}
	rows := make([]table.FeatureRow, 10)
	for i := range rows {
		rows[i] = covRow(i, map[string]float64{"x": 7, "y": float64(i)})
	}

	result := Regression(spec, rows)
	if result.Validity != analysis.ValidityDegenerate {
		t.Fatalf("validity = %s, want degenerate", result.Validity)
	}
	if !hasWarning(result, analysis.WarningZeroVariance) {
		t.Errorf("expected ZERO_VARIANCE, got %v", result.Warnings)
	}
}
