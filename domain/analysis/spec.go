package analysis

import (
	"fmt"
	"strings"

	"grantlens/domain/core"
)

// Kind selects the statistical procedure an analysis runs
type Kind string

const (
	KindGroupComparison Kind = "group_comparison"
	KindRegression      Kind = "regression"
	KindClustering      Kind = "clustering"
)

// IsValid reports whether the kind names a known procedure
func (k Kind) IsValid() bool {
	switch k {
	case KindGroupComparison, KindRegression, KindClustering:
		return true
	}
	return false
}

// DefaultMinGroupSize applies when a comparison spec leaves the threshold unset
const DefaultMinGroupSize = 5

// Spec describes one requested analysis. Specs come from the analysis
// battery file; a malformed spec is fatal for the run, unlike the
// per-analysis validity outcomes which are not.
type Spec struct {
	Name         string   `json:"name" yaml:"name"`
	Kind         Kind     `json:"kind" yaml:"kind"`
	Outcome      string   `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	GroupBy      string   `json:"group_by,omitempty" yaml:"group_by,omitempty"`
	Predictors   []string `json:"predictors,omitempty" yaml:"predictors,omitempty"`
	Variables    []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	K            int      `json:"k,omitempty" yaml:"k,omitempty"`
	MinGroupSize int      `json:"min_group_size,omitempty" yaml:"min_group_size,omitempty"`
}

// Validate checks structural correctness for the spec's kind
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return core.NewInvalidAnalysisSpecError("(unnamed)", "name is required")
	}
	if !s.Kind.IsValid() {
		return core.NewInvalidAnalysisSpecError(s.Name, fmt.Sprintf("unknown kind %q", s.Kind))
	}

	switch s.Kind {
	case KindGroupComparison:
		if s.Outcome == "" {
			return core.NewInvalidAnalysisSpecError(s.Name, "group comparison requires an outcome variable")
		}
		if s.GroupBy == "" {
			return core.NewInvalidAnalysisSpecError(s.Name, "group comparison requires a group_by variable")
		}
		if s.MinGroupSize < 0 {
			return core.NewInvalidAnalysisSpecError(s.Name, "min_group_size cannot be negative")
		}
	case KindRegression:
		if s.Outcome == "" {
			return core.NewInvalidAnalysisSpecError(s.Name, "regression requires an outcome variable")
		}
		if len(s.Predictors) == 0 {
			return core.NewInvalidAnalysisSpecError(s.Name, "regression requires at least one predictor")
		}
		for _, p := range s.Predictors {
			if p == s.Outcome {
				return core.NewInvalidAnalysisSpecError(s.Name, "outcome cannot appear among predictors")
			}
		}
	case KindClustering:
		if len(s.Variables) < 2 {
			return core.NewInvalidAnalysisSpecError(s.Name, "clustering requires at least two variables")
		}
		if s.K < 2 {
			return core.NewInvalidAnalysisSpecError(s.Name, "k must be at least 2 and is never inferred")
		}
	}
	return nil
}

// EffectiveMinGroupSize returns the configured or default group threshold
func (s Spec) EffectiveMinGroupSize() int {
	if s.MinGroupSize > 0 {
		return s.MinGroupSize
	}
	return DefaultMinGroupSize
}

// InputVariables lists every numeric variable the spec reads
func (s Spec) InputVariables() []string {
	switch s.Kind {
	case KindGroupComparison:
		return []string{s.Outcome}
	case KindRegression:
		vars := make([]string, 0, len(s.Predictors)+1)
		vars = append(vars, s.Outcome)
		vars = append(vars, s.Predictors...)
		return vars
	case KindClustering:
		return append([]string(nil), s.Variables...)
	}
	return nil
}
