package lumen

import (
	"math"
	"reflect"
	"testing"
	"time"
)

// dailySeries builds a dataset with one row per day and the given values.
func dailySeries(t *testing.T, values []float64) Dataset {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ds := make(Dataset, len(values))
	for i, v := range values {
		ds[i] = Record{
			"day":   TimeValue(base.AddDate(0, 0, i)),
			"total": Number(v),
		}
	}
	return ds
}

func TestForecaster_LinearExactFit(t *testing.T) {
	// y = 2x + 5 with no noise: projections must continue the line exactly
	// and date stamps must stay on the observed daily interval.
	values := make([]float64, 10)
	for i := range values {
		values[i] = 2*float64(i) + 5
	}
	ds := dailySeries(t, values)

	f := NewForecaster(DefaultForecastConfig())
	result := f.Forecast(ds, ForecastOptions{
		DateColumn:  "day",
		ValueColumn: "total",
		Periods:     5,
		Model:       ForecastModelLinear,
	})

	if len(result.Forecast) != 5 {
		t.Fatalf("expected 5 forecast records, got %d", len(result.Forecast))
	}

	lastObserved := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	for h, rec := range result.Forecast {
		want := 2*float64(9+h+1) + 5
		got := rec.Num("total")
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("horizon %d: value = %v, want %v", h+1, got, want)
		}

		ts, ok := rec.Time("day")
		if !ok {
			t.Fatalf("horizon %d: missing date stamp", h+1)
		}
		wantTs := lastObserved.AddDate(0, 0, h+1)
		if !ts.Equal(wantTs) {
			t.Errorf("horizon %d: stamp = %v, want %v", h+1, ts, wantTs)
		}

		if rec[ForecastColumn].Kind() != KindBool {
			t.Errorf("horizon %d: missing forecast marker", h+1)
		}
	}
}

func TestForecaster_InsufficientDataYieldsEmpty(t *testing.T) {
	f := NewForecaster(DefaultForecastConfig())

	result := f.Forecast(dailySeries(t, []float64{42}), ForecastOptions{
		DateColumn: "day", ValueColumn: "total", Periods: 3,
	})
	if len(result.Forecast) != 0 {
		t.Errorf("single-row input: expected empty forecast, got %d records", len(result.Forecast))
	}

	result = f.Forecast(dailySeries(t, []float64{1, 2, 3}), ForecastOptions{
		DateColumn: "day", ValueColumn: "total", Periods: 0,
	})
	if len(result.Forecast) != 0 {
		t.Errorf("zero periods: expected empty forecast, got %d records", len(result.Forecast))
	}
}

func TestForecaster_HoltWintersFallbackEquivalence(t *testing.T) {
	// 10 points is below two full weekly seasons, so exponential smoothing
	// must produce exactly what the linear model produces.
	ds := dailySeries(t, []float64{3, 7, 4, 9, 6, 11, 8, 13, 10, 15})
	f := NewForecaster(DefaultForecastConfig())

	viaFallback := f.Forecast(ds, ForecastOptions{
		DateColumn: "day", ValueColumn: "total", Periods: 4,
		Model: ForecastModelExponentialSmoothing,
	})
	direct := f.Forecast(ds, ForecastOptions{
		DateColumn: "day", ValueColumn: "total", Periods: 4,
		Model: ForecastModelLinear,
	})

	if !reflect.DeepEqual(viaFallback, direct) {
		t.Errorf("fallback result differs from direct linear result:\n%+v\nvs\n%+v", viaFallback, direct)
	}
	if viaFallback.Model != ForecastModelLinear {
		t.Errorf("effective model = %v, want linear", viaFallback.Model)
	}
}

func TestForecaster_HoltWintersSeasonal(t *testing.T) {
	// Three full weekly cycles (21 points keeps the heuristic at season
	// length 7) with a strong additive pattern. The forecast should keep
	// peaking on the same phase.
	pattern := []float64{10, 12, 14, 30, 14, 12, 10}
	var values []float64
	for cycle := 0; cycle < 3; cycle++ {
		for _, p := range pattern {
			values = append(values, p+float64(cycle))
		}
	}
	ds := dailySeries(t, values)

	f := NewForecaster(DefaultForecastConfig())
	result := f.Forecast(ds, ForecastOptions{
		DateColumn: "day", ValueColumn: "total", Periods: 7,
		Model: ForecastModelExponentialSmoothing,
	})

	if result.Model != ForecastModelExponentialSmoothing {
		t.Fatalf("expected seasonal model to run, got %v", result.Model)
	}
	if len(result.Forecast) != 7 {
		t.Fatalf("expected 7 forecast records, got %d", len(result.Forecast))
	}

	// len(values) == 21, so horizon h lands on phase (21+h-1) % 7 == h-1.
	// Phase 3 carries the spike.
	peak := result.Forecast[3].Num("total")
	for h, rec := range result.Forecast {
		if h == 3 {
			continue
		}
		if rec.Num("total") >= peak {
			t.Errorf("phase %d (%v) should stay below the seasonal peak %v", h, rec.Num("total"), peak)
		}
	}
}

func TestForecaster_Decomposition(t *testing.T) {
	// Linear trend plus a weekly pattern that is symmetric within each
	// cycle, so the OLS trend is recovered exactly and the forecast
	// reproduces trend + pattern.
	var values []float64
	for i := 0; i < 21; i++ {
		values = append(values, 0.5*float64(i)+math.Abs(float64(i%7)-3))
	}
	ds := dailySeries(t, values)

	f := NewForecaster(DefaultForecastConfig())
	result := f.Forecast(ds, ForecastOptions{
		DateColumn: "day", ValueColumn: "total", Periods: 7,
		Model: ForecastModelDecomposition,
	})

	if len(result.Forecast) != 7 {
		t.Fatalf("expected 7 forecast records, got %d", len(result.Forecast))
	}
	for h, rec := range result.Forecast {
		idx := 20 + h + 1
		want := 0.5*float64(idx) + math.Abs(float64(idx%7)-3)
		got := rec.Num("total")
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("horizon %d: value = %v, want %v", h+1, got, want)
		}
	}
}

func TestForecaster_ConfidenceInterval(t *testing.T) {
	ds := dailySeries(t, []float64{5, 8, 6, 9, 7, 10, 8, 11, 9, 12})
	f := NewForecaster(DefaultForecastConfig())

	result := f.Forecast(ds, ForecastOptions{
		DateColumn: "day", ValueColumn: "total", Periods: 4,
		Model:           ForecastModelLinear,
		ConfidenceLevel: 0.95,
	})

	if len(result.Lower) != 4 || len(result.Upper) != 4 {
		t.Fatalf("expected interval slices of length 4, got %d/%d", len(result.Lower), len(result.Upper))
	}
	for h := range result.Forecast {
		v := result.Forecast[h].Num("total")
		if !(result.Lower[h] <= v && v <= result.Upper[h]) {
			t.Errorf("horizon %d: value %v outside interval [%v, %v]", h+1, v, result.Lower[h], result.Upper[h])
		}
	}
	// Interval must widen with the horizon.
	firstWidth := result.Upper[0] - result.Lower[0]
	lastWidth := result.Upper[3] - result.Lower[3]
	if lastWidth <= firstWidth {
		t.Errorf("interval should widen: first %v, last %v", firstWidth, lastWidth)
	}
}

func TestForecaster_NonNumericCoercesToZero(t *testing.T) {
	ds := dailySeries(t, []float64{1, 2, 3, 4})
	ds[2]["total"] = Text("not a number")

	f := NewForecaster(DefaultForecastConfig())
	result := f.Forecast(ds, ForecastOptions{
		DateColumn: "day", ValueColumn: "total", Periods: 1,
		Model: ForecastModelLinear,
	})

	// Slope fitted against {1, 2, 0, 4}, not an error.
	if len(result.Forecast) != 1 {
		t.Fatalf("expected a forecast despite the bad cell")
	}
}

func TestForecaster_Idempotent(t *testing.T) {
	ds := dailySeries(t, []float64{4, 9, 2, 7, 5, 8, 3, 6, 4, 9, 2, 7, 5, 8})
	f := NewForecaster(DefaultForecastConfig())

	for _, model := range []ForecastModel{ForecastModelLinear, ForecastModelExponentialSmoothing, ForecastModelDecomposition} {
		opts := ForecastOptions{DateColumn: "day", ValueColumn: "total", Periods: 3, Model: model}
		first := f.Forecast(ds, opts)
		second := f.Forecast(ds, opts)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%v: repeated calls differ", model)
		}
	}
}

func TestParseForecastModel(t *testing.T) {
	cases := map[string]ForecastModel{
		"linear":                ForecastModelLinear,
		"exponential_smoothing": ForecastModelExponentialSmoothing,
		"decomposition":         ForecastModelDecomposition,
		"":                      ForecastModelLinear,
		"arima":                 ForecastModelLinear,
	}
	for name, want := range cases {
		if got := ParseForecastModel(name); got != want {
			t.Errorf("ParseForecastModel(%q) = %v, want %v", name, got, want)
		}
	}
}
