package lumen

import (
	"math"
	"math/rand"
	"time"
)

// ClusterConfig configures the K-Means clustering engine.
type ClusterConfig struct {
	// MaxIterations caps the assignment/update loop when the options don't
	// override it.
	MaxIterations int `yaml:"max_iterations"`

	// ConvergenceThreshold stops iteration early when the summed Euclidean
	// movement of all centroids drops below it.
	ConvergenceThreshold float64 `yaml:"convergence_threshold"`

	// Seed fixes the random source for centroid initialization. 0 seeds
	// from the wall clock.
	Seed int64 `yaml:"seed"`
}

// DefaultClusterConfig returns default clustering configuration.
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		MaxIterations:        50,
		ConvergenceThreshold: 0.001,
	}
}

// ClusterOptions selects the feature columns and partition size for one run.
type ClusterOptions struct {
	// Features are the numeric columns forming each row's feature vector,
	// in order.
	Features []string

	// K is the number of clusters. K greater than the row count triggers
	// the degenerate single-cluster result.
	K int

	// MaxIterations overrides the configured cap when positive.
	MaxIterations int

	// OnIteration, when set, observes each completed iteration with the
	// summed centroid movement. Used by the streaming boundary to report
	// progress.
	OnIteration func(iteration int, movement float64)
}

// ClusterAssignment is one row's cluster membership.
type ClusterAssignment struct {
	// Cluster is the assigned cluster id (0..k-1).
	Cluster int `json:"cluster"`

	// Distance is the Euclidean distance to the assigned centroid in
	// normalized feature space.
	Distance float64 `json:"distance"`
}

// ClusterResult is the output of one clustering invocation.
type ClusterResult struct {
	// Assignments holds one entry per input row, in row order.
	Assignments []ClusterAssignment `json:"assignments"`

	// Centroids are the final centroid vectors in min-max normalized space.
	Centroids [][]float64 `json:"centroids"`

	// CentroidsOriginal are the centroids inverse-transformed back to the
	// original feature units.
	CentroidsOriginal [][]float64 `json:"centroids_original"`

	// Iterations is the number of assignment/update passes performed.
	Iterations int `json:"iterations"`

	// Converged reports whether centroid movement fell below the threshold
	// before the iteration cap.
	Converged bool `json:"converged"`
}

// Clusterer partitions rows into k groups via K-Means over normalized
// feature vectors. The random source is owned by the clusterer so tests can
// pin the seed; a single Clusterer must not be shared across goroutines.
type Clusterer struct {
	config ClusterConfig
	rng    *rand.Rand
}

// NewClusterer creates a clusterer with its own seeded random source.
func NewClusterer(config ClusterConfig) *Clusterer {
	def := DefaultClusterConfig()
	if config.MaxIterations <= 0 {
		config.MaxIterations = def.MaxIterations
	}
	if config.ConvergenceThreshold <= 0 {
		config.ConvergenceThreshold = def.ConvergenceThreshold
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Clusterer{config: config, rng: rand.New(rand.NewSource(seed))}
}

// Cluster partitions the dataset. When k exceeds the row count (or is not
// positive) clustering is skipped and every row lands in cluster 0 at
// distance 0.
func (c *Clusterer) Cluster(dataset Dataset, opts ClusterOptions) ClusterResult {
	n := len(dataset)
	if n == 0 {
		return ClusterResult{}
	}
	if opts.K <= 0 || opts.K > n {
		assignments := make([]ClusterAssignment, n)
		return ClusterResult{Assignments: assignments}
	}

	vectors, mins, maxs := normalizeFeatures(dataset, opts.Features)
	k := opts.K
	dims := len(opts.Features)

	maxIter := c.config.MaxIterations
	if opts.MaxIterations > 0 {
		maxIter = opts.MaxIterations
	}

	// Initial centroids: k distinct rows chosen uniformly at random.
	centroids := make([][]float64, k)
	for i, idx := range c.rng.Perm(n)[:k] {
		centroids[i] = append([]float64(nil), vectors[idx]...)
	}

	assignments := make([]ClusterAssignment, n)
	iterations := 0
	converged := false

	for iter := 0; iter < maxIter; iter++ {
		iterations = iter + 1

		// Assignment pass.
		counts := make([]int, k)
		sums := make([][]float64, k)
		for i := range sums {
			sums[i] = make([]float64, dims)
		}
		for row, vec := range vectors {
			best, dist := nearestCentroid(vec, centroids)
			assignments[row] = ClusterAssignment{Cluster: best, Distance: dist}
			counts[best]++
			for d, x := range vec {
				sums[best][d] += x
			}
		}

		// Update pass. Empty clusters are re-seeded from a random row so
		// the partition keeps exactly k clusters.
		movement := 0.0
		for i := 0; i < k; i++ {
			var next []float64
			if counts[i] == 0 {
				next = append([]float64(nil), vectors[c.rng.Intn(n)]...)
			} else {
				next = make([]float64, dims)
				for d := range next {
					next[d] = sums[i][d] / float64(counts[i])
				}
			}
			movement += euclidean(centroids[i], next)
			centroids[i] = next
		}

		if opts.OnIteration != nil {
			opts.OnIteration(iterations, movement)
		}
		if movement < c.config.ConvergenceThreshold {
			converged = true
			break
		}
	}

	// Distances in the result refer to the final centroid positions.
	for row, vec := range vectors {
		best, dist := nearestCentroid(vec, centroids)
		assignments[row] = ClusterAssignment{Cluster: best, Distance: dist}
	}

	return ClusterResult{
		Assignments:       assignments,
		Centroids:         centroids,
		CentroidsOriginal: denormalizeCentroids(centroids, mins, maxs),
		Iterations:        iterations,
		Converged:         converged,
	}
}

// normalizeFeatures extracts per-row feature vectors and min-max normalizes
// each dimension into [0,1]. A constant column normalizes to 0 for every
// row. Returns the per-dimension observed mins and maxs for the inverse
// transform.
func normalizeFeatures(dataset Dataset, features []string) (vectors [][]float64, mins, maxs []float64) {
	dims := len(features)
	mins = make([]float64, dims)
	maxs = make([]float64, dims)
	for d := range features {
		mins[d] = math.Inf(1)
		maxs[d] = math.Inf(-1)
	}

	vectors = make([][]float64, len(dataset))
	for i, rec := range dataset {
		vec := make([]float64, dims)
		for d, col := range features {
			v := rec.Num(col)
			vec[d] = v
			if v < mins[d] {
				mins[d] = v
			}
			if v > maxs[d] {
				maxs[d] = v
			}
		}
		vectors[i] = vec
	}

	for _, vec := range vectors {
		for d := range vec {
			span := maxs[d] - mins[d]
			if span > 0 {
				vec[d] = (vec[d] - mins[d]) / span
			} else {
				vec[d] = 0
			}
		}
	}
	return vectors, mins, maxs
}

// denormalizeCentroids maps normalized centroids back to original units.
func denormalizeCentroids(centroids [][]float64, mins, maxs []float64) [][]float64 {
	out := make([][]float64, len(centroids))
	for i, c := range centroids {
		orig := make([]float64, len(c))
		for d, x := range c {
			orig[d] = mins[d] + x*(maxs[d]-mins[d])
		}
		out[i] = orig
	}
	return out
}

func nearestCentroid(vec []float64, centroids [][]float64) (best int, dist float64) {
	dist = math.Inf(1)
	for i, c := range centroids {
		if d := euclidean(vec, c); d < dist {
			best, dist = i, d
		}
	}
	return best, dist
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
