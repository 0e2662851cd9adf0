package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"grantlens/domain/analysis"
	"grantlens/domain/core"
	"grantlens/domain/table"
	"grantlens/internal/inference"
)

// Options tunes batch execution
type Options struct {
	MaxConcurrency int64
	ClusterSeed    int64

	// MinGroupSize applies to comparison specs that leave the threshold
	// unset; zero defers to the package default.
	MinGroupSize int
}

// Engine executes an analysis battery over an immutable feature snapshot.
// Analyses are independent: each reads the shared snapshot and writes only
// its own result, so they run concurrently under a weighted semaphore.
type Engine struct {
	sem      *semaphore.Weighted
	seed     int64
	minGroup int
}

// New creates an engine bounded to the given concurrency
func New(opts Options) *Engine {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	seed := opts.ClusterSeed
	if seed == 0 {
		seed = inference.DefaultClusterSeed
	}
	return &Engine{
		sem:      semaphore.NewWeighted(opts.MaxConcurrency),
		seed:     seed,
		minGroup: opts.MinGroupSize,
	}
}

// Run fills unset comparison thresholds from the engine's configured
// minimum group size, validates every spec up front (a malformed spec is
// fatal, unlike per-analysis assumption failures) and then executes the
// battery. Results
// come back in spec order; after the batch, Benjamini-Hochberg q-values
// are assigned across all p-carrying results.
func (e *Engine) Run(ctx context.Context, runID core.RunID, specs []analysis.Spec, rows []table.FeatureRow) ([]analysis.StatisticalResult, error) {
	specs = append([]analysis.Spec(nil), specs...)
	for i := range specs {
		if specs[i].MinGroupSize == 0 {
			specs[i].MinGroupSize = e.minGroup
		}
		if err := specs[i].Validate(); err != nil {
			return nil, err
		}
	}

	results := make([]analysis.StatisticalResult, len(specs))
	var wg sync.WaitGroup
	for i, spec := range specs {
		weight := int64(1)
		if spec.Kind == analysis.KindClustering {
			// Clustering iterates over the whole table repeatedly
			weight = 2
		}
		if err := e.sem.Acquire(ctx, weight); err != nil {
			return nil, err
		}

		wg.Add(1)
		go func(i int, spec analysis.Spec, weight int64) {
			defer wg.Done()
			defer e.sem.Release(weight)
			results[i] = e.execute(spec, rows)
			results[i].RunID = runID
		}(i, spec, weight)
	}
	wg.Wait()

	ApplyFDR(results)
	return results, nil
}

// execute runs one analysis, converting a panic in a procedure into a
// failed result so a single analysis can never take down the batch
func (e *Engine) execute(spec analysis.Spec, rows []table.FeatureRow) (result analysis.StatisticalResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = analysis.InvalidResult(spec, analysis.ValidityFailed)
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.ElapsedMs = time.Since(start).Milliseconds()
	}()

	switch spec.Kind {
	case analysis.KindGroupComparison:
		return inference.GroupComparison(spec, rows)
	case analysis.KindRegression:
		return inference.Regression(spec, rows)
	case analysis.KindClustering:
		return inference.Clustering(spec, rows, e.seed)
	}
	return analysis.InvalidResult(spec, analysis.ValidityFailed)
}

// ApplyFDR assigns Benjamini-Hochberg q-values across every result in the
// batch that carries an interpretable p-value: q_i = p_i * m / rank_i,
// clamped to 1 and made monotone from the largest p down.
func ApplyFDR(results []analysis.StatisticalResult) {
	idx := make([]int, 0, len(results))
	for i := range results {
		if results[i].HasPValue() {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return
	}

	sort.Slice(idx, func(a, b int) bool {
		return *results[idx[a]].PValue < *results[idx[b]].PValue
	})

	m := float64(len(idx))
	minSoFar := 1.0
	for rank := len(idx); rank >= 1; rank-- {
		i := idx[rank-1]
		q := *results[i].PValue * m / float64(rank)
		if q > minSoFar {
			q = minSoFar
		} else {
			minSoFar = q
		}
		results[i].QValue = analysis.FloatPtr(q)
	}
}
