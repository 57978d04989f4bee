package lumen

import (
	"math"
	"sort"
)

// AnomalyMethod identifies the outlier test.
type AnomalyMethod int

const (
	// AnomalyMethodIQR flags values outside the interquartile-range fences.
	AnomalyMethodIQR AnomalyMethod = iota
	// AnomalyMethodZScore flags values too many standard deviations from the mean.
	AnomalyMethodZScore
)

// ParseAnomalyMethod maps a method name to an AnomalyMethod. Unknown or
// empty names select IQR.
func ParseAnomalyMethod(name string) AnomalyMethod {
	switch name {
	case "z-score", "zscore":
		return AnomalyMethodZScore
	default:
		return AnomalyMethodIQR
	}
}

// String returns the wire name of the method.
func (m AnomalyMethod) String() string {
	if m == AnomalyMethodZScore {
		return "z-score"
	}
	return "iqr"
}

// AnomalyConfig configures the anomaly detector's base thresholds.
type AnomalyConfig struct {
	// ZScoreThreshold is the base number of standard deviations beyond
	// which a value is anomalous.
	ZScoreThreshold float64 `yaml:"zscore_threshold"`

	// IQRMultiplier is the base fence multiplier k in Q1-k*IQR / Q3+k*IQR.
	IQRMultiplier float64 `yaml:"iqr_multiplier"`
}

// DefaultAnomalyConfig returns the conventional thresholds.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		ZScoreThreshold: 3.0,
		IQRMultiplier:   1.5,
	}
}

// AnomalyOptions selects the column, method, and sensitivity for one run.
type AnomalyOptions struct {
	// ValueColumn holds the numeric series to test.
	ValueColumn string

	// Method selects the outlier test.
	Method AnomalyMethod

	// Sensitivity divides the base threshold when > 0. Higher sensitivity
	// means a tighter threshold and therefore more flags; 0 or negative
	// leaves the base threshold unchanged.
	Sensitivity float64
}

// RowAnomaly is the classification of one input row, in input row order.
type RowAnomaly struct {
	// Row is the row index in the input dataset.
	Row int `json:"row"`

	// Value is the coerced value that was tested.
	Value float64 `json:"value"`

	// Anomaly reports whether the value fell outside the bounds.
	Anomaly bool `json:"anomaly"`

	// Score is the method's distance measure: standard deviations from the
	// mean for z-score, IQR multiples outside the box for IQR.
	Score float64 `json:"score"`

	// LowerBound and UpperBound are the fences that classified the value.
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// AnomalyDetector flags outlying values in a numeric column.
type AnomalyDetector struct {
	config AnomalyConfig
}

// NewAnomalyDetector creates a detector, defaulting non-positive thresholds.
func NewAnomalyDetector(config AnomalyConfig) *AnomalyDetector {
	def := DefaultAnomalyConfig()
	if config.ZScoreThreshold <= 0 {
		config.ZScoreThreshold = def.ZScoreThreshold
	}
	if config.IQRMultiplier <= 0 {
		config.IQRMultiplier = def.IQRMultiplier
	}
	return &AnomalyDetector{config: config}
}

// Detect classifies every row of the dataset. An empty dataset yields an
// empty result; a constant series yields no flags under either method.
func (d *AnomalyDetector) Detect(dataset Dataset, opts AnomalyOptions) []RowAnomaly {
	if len(dataset) == 0 {
		return nil
	}
	values := dataset.Column(opts.ValueColumn)

	switch opts.Method {
	case AnomalyMethodZScore:
		return d.zscore(values, opts.Sensitivity)
	default:
		return d.iqr(values, opts.Sensitivity)
	}
}

// effectiveThreshold divides base by sensitivity when sensitivity is positive.
func effectiveThreshold(base, sensitivity float64) float64 {
	if sensitivity > 0 {
		return base / sensitivity
	}
	return base
}

func (d *AnomalyDetector) zscore(values []float64, sensitivity float64) []RowAnomaly {
	m := meanOf(values)
	std := stddevPop(values)
	threshold := effectiveThreshold(d.config.ZScoreThreshold, sensitivity)

	out := make([]RowAnomaly, len(values))
	for i, v := range values {
		score := 0.0
		if std > 0 {
			score = math.Abs(v-m) / std
		}
		out[i] = RowAnomaly{
			Row:        i,
			Value:      v,
			Anomaly:    std > 0 && score > threshold,
			Score:      score,
			LowerBound: m - threshold*std,
			UpperBound: m + threshold*std,
		}
	}
	return out
}

func (d *AnomalyDetector) iqr(values []float64, sensitivity float64) []RowAnomaly {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	k := effectiveThreshold(d.config.IQRMultiplier, sensitivity)
	lower := q1 - k*iqr
	upper := q3 + k*iqr

	out := make([]RowAnomaly, len(values))
	for i, v := range values {
		score := 0.0
		if iqr > 0 {
			if excess := math.Max(q1-v, v-q3); excess > 0 {
				score = excess / iqr
			}
		}
		out[i] = RowAnomaly{
			Row:        i,
			Value:      v,
			Anomaly:    iqr > 0 && (v < lower || v > upper),
			Score:      score,
			LowerBound: lower,
			UpperBound: upper,
		}
	}
	return out
}
