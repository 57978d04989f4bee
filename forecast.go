package lumen

import (
	"math"
	"time"
)

// ForecastModel identifies the forecasting algorithm.
type ForecastModel int

const (
	// ForecastModelLinear fits an ordinary least-squares trend line.
	ForecastModelLinear ForecastModel = iota
	// ForecastModelExponentialSmoothing uses additive Holt-Winters
	// triple exponential smoothing.
	ForecastModelExponentialSmoothing
	// ForecastModelDecomposition fits a global linear trend plus a
	// phase-averaged seasonal pattern of the residuals.
	ForecastModelDecomposition
)

// ParseForecastModel maps a model name to a ForecastModel. Unknown or empty
// names select the linear model.
func ParseForecastModel(name string) ForecastModel {
	switch name {
	case "exponential_smoothing":
		return ForecastModelExponentialSmoothing
	case "decomposition":
		return ForecastModelDecomposition
	default:
		return ForecastModelLinear
	}
}

// String returns the wire name of the model.
func (m ForecastModel) String() string {
	switch m {
	case ForecastModelExponentialSmoothing:
		return "exponential_smoothing"
	case ForecastModelDecomposition:
		return "decomposition"
	default:
		return "linear"
	}
}

// ForecastColumn is the marker column set to true on every synthesized
// forecast record, distinguishing projected points from observed ones.
const ForecastColumn = "_forecast"

// ForecastConfig configures the forecast engine.
type ForecastConfig struct {
	// Alpha is the level smoothing constant (0-1) for Holt-Winters.
	Alpha float64 `yaml:"alpha"`

	// Beta is the trend smoothing constant (0-1) for Holt-Winters.
	Beta float64 `yaml:"beta"`

	// Gamma is the seasonal smoothing constant (0-1) for Holt-Winters.
	Gamma float64 `yaml:"gamma"`
}

// DefaultForecastConfig returns default forecasting configuration.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		Alpha: 0.5,
		Beta:  0.4,
		Gamma: 0.6,
	}
}

// ForecastOptions selects the columns, horizon, and model for one forecast.
type ForecastOptions struct {
	// DateColumn holds the time axis of the series.
	DateColumn string

	// ValueColumn holds the numeric series to extrapolate.
	ValueColumn string

	// Periods is the number of future points to synthesize.
	Periods int

	// Model selects the forecasting algorithm.
	Model ForecastModel

	// ConfidenceLevel, when in (0,1), requests a symmetric confidence
	// interval around each forecast value. 0 disables the interval.
	ConfidenceLevel float64
}

// ForecastResult is the output of one forecast invocation.
type ForecastResult struct {
	// Forecast holds the synthesized future records, each carrying the
	// date column, the value column, and the ForecastColumn marker.
	Forecast Dataset `json:"forecast"`

	// Lower and Upper bound the confidence interval per forecast point.
	// Nil unless a confidence level was requested.
	Lower []float64 `json:"lower,omitempty"`
	Upper []float64 `json:"upper,omitempty"`

	// Model is the model that actually produced the forecast, after any
	// insufficient-history fallback.
	Model ForecastModel `json:"-"`
}

// ModelName exposes the effective model for serialization.
func (r *ForecastResult) ModelName() string { return r.Model.String() }

// Forecaster extrapolates a numeric series into future periods.
type Forecaster struct {
	config ForecastConfig
}

// NewForecaster creates a forecaster, clamping smoothing constants into (0,1).
func NewForecaster(config ForecastConfig) *Forecaster {
	def := DefaultForecastConfig()
	if config.Alpha <= 0 || config.Alpha >= 1 {
		config.Alpha = def.Alpha
	}
	if config.Beta <= 0 || config.Beta >= 1 {
		config.Beta = def.Beta
	}
	if config.Gamma <= 0 || config.Gamma >= 1 {
		config.Gamma = def.Gamma
	}
	return &Forecaster{config: config}
}

// Forecast extrapolates the value column of the dataset. Fewer than 2 rows,
// or a non-positive horizon, yields an empty forecast rather than an error;
// the caller's row order is the sequence order of the series.
func (f *Forecaster) Forecast(dataset Dataset, opts ForecastOptions) ForecastResult {
	if len(dataset) < 2 || opts.Periods <= 0 {
		return ForecastResult{Forecast: Dataset{}, Model: opts.Model}
	}

	series := dataset.Column(opts.ValueColumn)

	switch opts.Model {
	case ForecastModelExponentialSmoothing:
		return f.holtWinters(dataset, series, opts)
	case ForecastModelDecomposition:
		return f.decomposition(dataset, series, opts)
	default:
		return f.linear(dataset, series, opts)
	}
}

// timeAxis derives the forecast date stamps. The average inter-row interval
// is (last-first)/(n-1); future point h lands at last + h*interval. This
// deliberately decouples the regression's integer index space from the real
// date axis, since upstream sampling may be irregular.
func timeAxis(dataset Dataset, dateColumn string) (last time.Time, interval time.Duration) {
	n := len(dataset)
	first, _ := dataset[0].Time(dateColumn)
	last, _ = dataset[n-1].Time(dateColumn)
	if n > 1 {
		interval = last.Sub(first) / time.Duration(n-1)
	}
	return last, interval
}

// forecastRecord synthesizes one projected row.
func forecastRecord(opts ForecastOptions, ts time.Time, value float64) Record {
	return Record{
		opts.DateColumn:  TimeValue(ts),
		opts.ValueColumn: Number(value),
		ForecastColumn:   Bool(true),
	}
}

// assemble stamps the forecast values onto the derived time axis and attaches
// the confidence interval when one was requested.
func assemble(dataset Dataset, opts ForecastOptions, values []float64, residStd float64, model ForecastModel) ForecastResult {
	last, interval := timeAxis(dataset, opts.DateColumn)

	out := make(Dataset, len(values))
	for h, v := range values {
		ts := last.Add(time.Duration(h+1) * interval)
		out[h] = forecastRecord(opts, ts, v)
	}

	res := ForecastResult{Forecast: out, Model: model}
	if opts.ConfidenceLevel > 0 && opts.ConfidenceLevel < 1 {
		z := normalQuantile(opts.ConfidenceLevel)
		res.Lower = make([]float64, len(values))
		res.Upper = make([]float64, len(values))
		for h, v := range values {
			// Interval widens with the square root of the horizon.
			margin := z * residStd * math.Sqrt(float64(h+1))
			res.Lower[h] = v - margin
			res.Upper[h] = v + margin
		}
	}
	return res
}

// linear fits y = m*x + b over position indexes 0..n-1 and projects
// m*(n-1+h) + b for each horizon h.
func (f *Forecaster) linear(dataset Dataset, series []float64, opts ForecastOptions) ForecastResult {
	n := len(series)
	slope, intercept := olsFit(series)

	fitted := make([]float64, n)
	for i := range series {
		fitted[i] = slope*float64(i) + intercept
	}

	values := make([]float64, opts.Periods)
	for h := 1; h <= opts.Periods; h++ {
		values[h-1] = slope*float64(n-1+h) + intercept
	}
	return assemble(dataset, opts, values, residualStddev(series, fitted), ForecastModelLinear)
}

// seasonLength picks the Holt-Winters cycle length heuristically: 12 for
// series long enough to be monthly, else 7 for weekly cadence.
func seasonLength(n int) int {
	if n >= 24 {
		return 12
	}
	return 7
}

// holtWinters runs additive triple exponential smoothing. Series shorter
// than two full seasons fall back to the linear model; that fallback is a
// policy, not an error path.
func (f *Forecaster) holtWinters(dataset Dataset, series []float64, opts ForecastOptions) ForecastResult {
	n := len(series)
	m := seasonLength(n)
	if n < 2*m {
		return f.linear(dataset, series, opts)
	}

	alpha, beta, gamma := f.config.Alpha, f.config.Beta, f.config.Gamma

	level := series[0]
	trend := series[1] - series[0]

	// Initial seasonal indexes: first cycle's observations minus their mean.
	seasonal := make([]float64, m)
	firstMean := meanOf(series[:m])
	for i := 0; i < m; i++ {
		seasonal[i] = series[i] - firstMean
	}

	fitted := make([]float64, n)
	for i := 0; i < n; i++ {
		phase := i % m
		fitted[i] = level + trend + seasonal[phase]

		// Trend reads the previous level; the seasonal index for this
		// phase reads the freshly updated level.
		prevLevel := level
		level = alpha*(series[i]-seasonal[phase]) + (1-alpha)*(prevLevel+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
		seasonal[phase] = gamma*(series[i]-level) + (1-gamma)*seasonal[phase]
	}

	values := make([]float64, opts.Periods)
	for h := 1; h <= opts.Periods; h++ {
		phase := (n + h - 1) % m
		values[h-1] = level + float64(h)*trend + seasonal[phase]
	}
	return assemble(dataset, opts, values, residualStddev(series, fitted), ForecastModelExponentialSmoothing)
}

// decompositionSeasonLength is chosen independently of the Holt-Winters
// heuristic: roughly a quarter of the series for long inputs, else weekly.
func decompositionSeasonLength(n int) int {
	if n > 20 {
		if n/4 > 7 {
			return n / 4
		}
		return 7
	}
	return 7
}

// decomposition fits one global OLS trend, averages the detrended residuals
// by phase, and projects trend plus seasonal pattern.
func (f *Forecaster) decomposition(dataset Dataset, series []float64, opts ForecastOptions) ForecastResult {
	n := len(series)
	slope, intercept := olsFit(series)

	m := decompositionSeasonLength(n)
	sums := make([]float64, m)
	counts := make([]int, m)
	for i, y := range series {
		phase := i % m
		sums[phase] += y - (slope*float64(i) + intercept)
		counts[phase]++
	}
	pattern := make([]float64, m)
	for p := range pattern {
		if counts[p] > 0 {
			pattern[p] = sums[p] / float64(counts[p])
		}
	}

	fitted := make([]float64, n)
	for i := range series {
		fitted[i] = slope*float64(i) + intercept + pattern[i%m]
	}

	values := make([]float64, opts.Periods)
	for h := 1; h <= opts.Periods; h++ {
		idx := n - 1 + h
		values[h-1] = slope*float64(idx) + intercept + pattern[idx%m]
	}
	return assemble(dataset, opts, values, residualStddev(series, fitted), ForecastModelDecomposition)
}
