package analysis

import (
	"errors"
	"testing"

	"grantlens/domain/core"
)

func TestSpecValidateGroupComparison(t *testing.T) {
	spec := Spec{
		Name:    "mortality_by_tier",
		Kind:    KindGroupComparison,
		Outcome: "infant_mortality_rate",
		GroupBy: "funding_tier",
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("Valid comparison spec rejected: %v", err)
	}

	spec.GroupBy = ""
	if err := spec.Validate(); err == nil {
		t.Error("Expected error for missing group_by")
	} else if !errors.Is(err, core.ErrInvalidAnalysisSpec) {
		t.Errorf("Expected ErrInvalidAnalysisSpec, got %v", err)
	}
}

func TestSpecValidateRegression(t *testing.T) {
	spec := Spec{
		Name:       "mortality_model",
		Kind:       KindRegression,
		Outcome:    "infant_mortality_rate",
		Predictors: []string{"per_capita_funding", "poverty_rate"},
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("Valid regression spec rejected: %v", err)
	}

	spec.Predictors = []string{"infant_mortality_rate"}
	if err := spec.Validate(); err == nil {
		t.Error("Expected error when outcome appears among predictors")
	}

	spec.Predictors = nil
	if err := spec.Validate(); err == nil {
		t.Error("Expected error for empty predictors")
	}
}

func TestSpecValidateClustering(t *testing.T) {
	spec := Spec{
		Name:      "funding_profiles",
		Kind:      KindClustering,
		Variables: []string{"per_capita_funding", "grant_count"},
		K:         3,
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("Valid clustering spec rejected: %v", err)
	}

	// K is caller-supplied, never inferred
	spec.K = 0
	if err := spec.Validate(); err == nil {
		t.Error("Expected error for missing k")
	}

	spec.K = 3
	spec.Variables = []string{"per_capita_funding"}
	if err := spec.Validate(); err == nil {
		t.Error("Expected error for single clustering variable")
	}
}

func TestSpecValidateUnknownKind(t *testing.T) {
	spec := Spec{Name: "x", Kind: Kind("bayesian_magic")}
	if err := spec.Validate(); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestEffectiveMinGroupSize(t *testing.T) {
	spec := Spec{Name: "x", Kind: KindGroupComparison, Outcome: "o", GroupBy: "g"}
	if got := spec.EffectiveMinGroupSize(); got != DefaultMinGroupSize {
		t.Errorf("Expected default %d, got %d", DefaultMinGroupSize, got)
	}
	spec.MinGroupSize = 12
	if got := spec.EffectiveMinGroupSize(); got != 12 {
		t.Errorf("Expected 12, got %d", got)
	}
}

func TestInputVariables(t *testing.T) {
	spec := Spec{
		Name:       "m",
		Kind:       KindRegression,
		Outcome:    "y",
		Predictors: []string{"a", "b"},
	}
	vars := spec.InputVariables()
	if len(vars) != 3 || vars[0] != "y" || vars[1] != "a" || vars[2] != "b" {
		t.Errorf("Unexpected input variables: %v", vars)
	}
}
