package lumen

import (
	"math"
	"reflect"
	"testing"
)

func featureDataset(rows [][2]float64) Dataset {
	ds := make(Dataset, len(rows))
	for i, row := range rows {
		ds[i] = Record{"x": Number(row[0]), "y": Number(row[1])}
	}
	return ds
}

func TestClusterer_SingleClusterCentroidIsMean(t *testing.T) {
	ds := featureDataset([][2]float64{{0, 0}, {2, 4}, {4, 8}, {6, 12}})
	c := NewClusterer(ClusterConfig{Seed: 1})

	result := c.Cluster(ds, ClusterOptions{Features: []string{"x", "y"}, K: 1})

	if !result.Converged {
		t.Error("k=1 should converge")
	}
	for i, a := range result.Assignments {
		if a.Cluster != 0 {
			t.Errorf("row %d assigned to cluster %d, want 0", i, a.Cluster)
		}
	}

	// Normalized vectors are 0, 1/3, 2/3, 1 per dimension; their mean is 0.5.
	if len(result.Centroids) != 1 {
		t.Fatalf("expected 1 centroid, got %d", len(result.Centroids))
	}
	for d, v := range result.Centroids[0] {
		if math.Abs(v-0.5) > 1e-9 {
			t.Errorf("centroid dim %d = %v, want 0.5", d, v)
		}
	}

	// Inverse transform lands on the original-unit mean.
	wantOrig := []float64{3, 6}
	for d, v := range result.CentroidsOriginal[0] {
		if math.Abs(v-wantOrig[d]) > 1e-9 {
			t.Errorf("original-unit centroid dim %d = %v, want %v", d, v, wantOrig[d])
		}
	}
}

func TestClusterer_DegenerateKExceedsRows(t *testing.T) {
	ds := featureDataset([][2]float64{{1, 1}, {2, 2}})
	c := NewClusterer(ClusterConfig{Seed: 1})

	result := c.Cluster(ds, ClusterOptions{Features: []string{"x", "y"}, K: 5})

	if len(result.Assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(result.Assignments))
	}
	for i, a := range result.Assignments {
		if a.Cluster != 0 || a.Distance != 0 {
			t.Errorf("row %d = %+v, want cluster 0 at distance 0", i, a)
		}
	}
	if len(result.Centroids) != 0 {
		t.Errorf("degenerate path should not produce centroids, got %d", len(result.Centroids))
	}
}

func TestClusterer_EmptyDataset(t *testing.T) {
	c := NewClusterer(ClusterConfig{Seed: 1})
	result := c.Cluster(Dataset{}, ClusterOptions{Features: []string{"x"}, K: 2})
	if len(result.Assignments) != 0 {
		t.Errorf("expected no assignments for empty dataset")
	}
}

func TestClusterer_WellSeparatedGroups(t *testing.T) {
	ds := featureDataset([][2]float64{
		{0, 0}, {0.5, 0.2}, {0.2, 0.6}, {0.4, 0.4},
		{10, 10}, {10.5, 10.2}, {10.2, 10.6}, {10.4, 10.4},
	})
	c := NewClusterer(ClusterConfig{Seed: 7})

	result := c.Cluster(ds, ClusterOptions{Features: []string{"x", "y"}, K: 2})

	if !result.Converged {
		t.Error("well-separated groups should converge within the iteration cap")
	}

	low := result.Assignments[0].Cluster
	high := result.Assignments[4].Cluster
	if low == high {
		t.Fatalf("the two groups collapsed into cluster %d", low)
	}
	for i := 0; i < 4; i++ {
		if result.Assignments[i].Cluster != low {
			t.Errorf("row %d assigned to %d, want %d", i, result.Assignments[i].Cluster, low)
		}
	}
	for i := 4; i < 8; i++ {
		if result.Assignments[i].Cluster != high {
			t.Errorf("row %d assigned to %d, want %d", i, result.Assignments[i].Cluster, high)
		}
	}
}

func TestClusterer_SeededRunsAreDeterministic(t *testing.T) {
	ds := featureDataset([][2]float64{
		{1, 2}, {2, 1}, {8, 9}, {9, 8}, {4, 5}, {5, 4}, {1, 1}, {9, 9},
	})
	opts := ClusterOptions{Features: []string{"x", "y"}, K: 3}

	first := NewClusterer(ClusterConfig{Seed: 42}).Cluster(ds, opts)
	second := NewClusterer(ClusterConfig{Seed: 42}).Cluster(ds, opts)

	if !reflect.DeepEqual(first, second) {
		t.Error("identical seeds should produce identical partitions")
	}
}

func TestClusterer_ConstantColumnNormalizesToZero(t *testing.T) {
	ds := featureDataset([][2]float64{{5, 1}, {5, 2}, {5, 3}})
	c := NewClusterer(ClusterConfig{Seed: 3})

	result := c.Cluster(ds, ClusterOptions{Features: []string{"x", "y"}, K: 1})

	// Constant x contributes nothing: the centroid's x sits at 0 in
	// normalized space and back at 5 in original units.
	if result.Centroids[0][0] != 0 {
		t.Errorf("constant dimension centroid = %v, want 0", result.Centroids[0][0])
	}
	if result.CentroidsOriginal[0][0] != 5 {
		t.Errorf("constant dimension original centroid = %v, want 5", result.CentroidsOriginal[0][0])
	}
}

func TestClusterer_NonNumericFeatureCoercesToZero(t *testing.T) {
	ds := Dataset{
		Record{"x": Number(1), "y": Text("oops")},
		Record{"x": Number(2), "y": Number(3)},
		Record{"x": Number(3), "y": Number(4)},
	}
	c := NewClusterer(ClusterConfig{Seed: 5})

	result := c.Cluster(ds, ClusterOptions{Features: []string{"x", "y"}, K: 1})
	if len(result.Assignments) != 3 {
		t.Fatalf("expected 3 assignments despite the bad cell")
	}
}

func TestClusterer_OnIterationObservesProgress(t *testing.T) {
	ds := featureDataset([][2]float64{
		{0, 0}, {1, 1}, {10, 10}, {11, 11},
	})
	c := NewClusterer(ClusterConfig{Seed: 11})

	var iterations []int
	c.Cluster(ds, ClusterOptions{
		Features: []string{"x", "y"},
		K:        2,
		OnIteration: func(iteration int, movement float64) {
			iterations = append(iterations, iteration)
			if movement < 0 {
				t.Errorf("iteration %d reported negative movement %v", iteration, movement)
			}
		},
	})

	if len(iterations) == 0 {
		t.Fatal("OnIteration was never invoked")
	}
	for i, it := range iterations {
		if it != i+1 {
			t.Fatalf("iteration sequence %v is not 1..n", iterations)
		}
	}
}

func TestClusterer_MaxIterationsOverride(t *testing.T) {
	ds := featureDataset([][2]float64{
		{1, 2}, {2, 1}, {8, 9}, {9, 8}, {4, 5}, {5, 4},
	})
	c := NewClusterer(ClusterConfig{Seed: 2})

	result := c.Cluster(ds, ClusterOptions{
		Features:      []string{"x", "y"},
		K:             2,
		MaxIterations: 1,
	})
	if result.Iterations != 1 {
		t.Errorf("iterations = %d, want exactly 1", result.Iterations)
	}
}
