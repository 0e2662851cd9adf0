package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"grantlens/domain/analysis"
)

// File configuration validation errors.
var (
	ErrNoAnalyses           = errors.New("at least one analysis is required")
	ErrDuplicateAnalysis    = errors.New("analysis names must be unique")
	ErrInvalidBreakpoints   = errors.New("tier_breakpoints must be strictly increasing")
	ErrTierLabelCount       = errors.New("tier_labels must have one more entry than tier_breakpoints")
	ErrInvalidFuzzyDistance = errors.New("fuzzy_max_distance cannot be negative")
)

// Battery is the analysis battery file: the full set of analyses one run
// executes over the feature table.
type Battery struct {
	Analyses []analysis.Spec `yaml:"analyses"`
}

// LoadBattery reads and validates an analysis battery file. A malformed
// battery is fatal; per-analysis assumption failures at run time are not.
func LoadBattery(path string) (*Battery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read battery file: %w", err)
	}

	var battery Battery
	if err := yaml.Unmarshal(data, &battery); err != nil {
		return nil, fmt.Errorf("parse battery file: %w", err)
	}
	if err := battery.Validate(); err != nil {
		return nil, err
	}
	return &battery, nil
}

// Validate checks the battery for structural errors
func (b *Battery) Validate() error {
	if len(b.Analyses) == 0 {
		return ErrNoAnalyses
	}
	seen := make(map[string]bool, len(b.Analyses))
	for _, spec := range b.Analyses {
		if err := spec.Validate(); err != nil {
			return err
		}
		if seen[spec.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateAnalysis, spec.Name)
		}
		seen[spec.Name] = true
	}
	return nil
}

// Reference is the optional reference file: tier breakpoints and resolver
// tuning. When absent the pipeline derives breakpoints from the observed
// per-capita distribution.
type Reference struct {
	TierBreakpoints  []float64 `yaml:"tier_breakpoints,omitempty"`
	TierLabels       []string  `yaml:"tier_labels,omitempty"`
	FuzzyMaxDistance *int      `yaml:"fuzzy_max_distance,omitempty"`
}

// LoadReference reads and validates a reference file
func LoadReference(path string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference file: %w", err)
	}

	var ref Reference
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("parse reference file: %w", err)
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return &ref, nil
}

// Validate checks the reference file for structural errors
func (r *Reference) Validate() error {
	for i := 1; i < len(r.TierBreakpoints); i++ {
		if r.TierBreakpoints[i] <= r.TierBreakpoints[i-1] {
			return ErrInvalidBreakpoints
		}
	}
	if len(r.TierLabels) > 0 && len(r.TierLabels) != len(r.TierBreakpoints)+1 {
		return ErrTierLabelCount
	}
	if r.FuzzyMaxDistance != nil && *r.FuzzyMaxDistance < 0 {
		return ErrInvalidFuzzyDistance
	}
	return nil
}
