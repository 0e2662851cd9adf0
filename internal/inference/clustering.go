package inference

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"grantlens/domain/analysis"
	"grantlens/domain/table"
)

// DefaultClusterSeed fixes k-means initialization so identical inputs
// always yield identical assignments
const DefaultClusterSeed = 42

const maxKMeansIterations = 100

// Clustering groups geographies by funding-pattern similarity with
// k-means. Variables are z-score standardized before distance computation
// since funding variables live on very different scales; k always comes
// from the caller and is never inferred.
func Clustering(spec analysis.Spec, rows []table.FeatureRow, seed int64) analysis.StatisticalResult {
	result := analysis.NewResult(spec)

	cases, excluded := extractNumeric(rows, spec.Variables)
	result.ExcludedRows = excluded
	result.SampleSize = len(cases)

	n := len(cases)
	if n < spec.K*2 {
		result.Validity = analysis.ValidityInsufficientRows
		return result
	}
	if excluded > 0 && float64(excluded)/float64(n+excluded) > HighMissingShare {
		result.Warn(analysis.WarningHighMissing)
	}

	dims := len(spec.Variables)
	means := make([]float64, dims)
	sds := make([]float64, dims)
	for j := 0; j < dims; j++ {
		col := column(cases, j)
		means[j], sds[j] = stat.MeanStdDev(col, nil)
		if sds[j] == 0 {
			// A constant variable contributes nothing to distance
			result.Warn(analysis.WarningZeroVariance)
			sds[j] = 1
		}
	}

	points := make([][]float64, n)
	for i, c := range cases {
		points[i] = make([]float64, dims)
		for j, v := range c.values {
			points[i][j] = (v - means[j]) / sds[j]
		}
	}

	assignments, centroids, converged := kMeans(points, spec.K, seed)
	if !converged {
		result.Warn(analysis.WarningNoConvergence)
	}

	sizes := make([]int, spec.K)
	for _, a := range assignments {
		sizes[a]++
	}

	result.Assignments = make(map[string]int, n)
	for i, c := range cases {
		result.Assignments[c.key] = assignments[i]
	}

	wss := 0.0
	for i, point := range points {
		d := floats.Distance(point, centroids[assignments[i]], 2)
		wss += d * d
	}
	result.Statistic = analysis.FloatPtr(wss)

	for k := 0; k < spec.K; k++ {
		if sizes[k] == 0 {
			result.Warn(analysis.WarningEmptyCluster)
		}
		// Report centroids in original variable units
		centroid := make(map[string]float64, dims)
		for j, name := range spec.Variables {
			centroid[name] = centroids[k][j]*sds[j] + means[j]
		}
		result.Clusters = append(result.Clusters, analysis.ClusterSummary{
			Cluster:  k,
			Size:     sizes[k],
			Centroid: centroid,
		})
	}
	return result
}

// kMeans runs Lloyd's algorithm with seeded initialization over
// standardized points
func kMeans(points [][]float64, k int, seed int64) (assignments []int, centroids [][]float64, converged bool) {
	rng := rand.New(rand.NewSource(seed))
	dims := len(points[0])

	// Initialize centroids from k distinct points
	perm := rng.Perm(len(points))
	centroids = make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), points[perm[i]]...)
	}

	assignments = make([]int, len(points))
	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false
		for i, point := range points {
			best := 0
			bestDist := floats.Distance(point, centroids[0], 2)
			for c := 1; c < k; c++ {
				if d := floats.Distance(point, centroids[c], 2); d < bestDist {
					best = c
					bestDist = d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			return assignments, centroids, true
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, point := range points {
			floats.Add(sums[assignments[i]], point)
			counts[assignments[i]]++
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster keeps its previous centroid
				continue
			}
			for j := 0; j < dims; j++ {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}
	return assignments, centroids, false
}
