package lumen

import (
	"reflect"
	"sync"
	"testing"
)

func TestEngine_Facade(t *testing.T) {
	engine := New(DefaultConfig())
	ds := dailySeries(t, []float64{5, 7, 9, 11})

	forecast := engine.Forecast(ds, ForecastOptions{
		DateColumn: "day", ValueColumn: "total", Periods: 2,
	})
	if len(forecast.Forecast) != 2 {
		t.Errorf("expected 2 forecast records, got %d", len(forecast.Forecast))
	}

	anomalies := engine.DetectAnomalies(ds, AnomalyOptions{ValueColumn: "total"})
	if len(anomalies) != 4 {
		t.Errorf("expected 4 classifications, got %d", len(anomalies))
	}

	clusters := engine.Cluster(ds, ClusterOptions{Features: []string{"total"}, K: 2})
	if len(clusters.Assignments) != 4 {
		t.Errorf("expected 4 assignments, got %d", len(clusters.Assignments))
	}
}

func TestEngine_ConcurrentCallsAreIndependent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cluster.Seed = 9
	engine := New(cfg)
	ds := dailySeries(t, []float64{4, 9, 2, 7, 5, 8, 3, 6})

	opts := ForecastOptions{DateColumn: "day", ValueColumn: "total", Periods: 3}
	want := engine.Forecast(ds, opts)

	var wg sync.WaitGroup
	results := make([]ForecastResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.Forecast(ds, opts)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("goroutine %d produced a different result", i)
		}
	}
}

func TestHashAPIKey_Deterministic(t *testing.T) {
	a := HashAPIKey("secret", "salt", 1000)
	b := HashAPIKey("secret", "salt", 1000)
	if a != b {
		t.Error("same inputs should produce the same digest")
	}
	if HashAPIKey("other", "salt", 1000) == a {
		t.Error("different keys should produce different digests")
	}
	if HashAPIKey("secret", "pepper", 1000) == a {
		t.Error("different salts should produce different digests")
	}
}
