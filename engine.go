package lumen

// Engine bundles the three analytics components behind one facade. Every
// method is a pure function of its inputs; the engine holds only
// configuration, so a single Engine is safe for concurrent use from multiple
// request handlers.
type Engine struct {
	config     Config
	forecaster *Forecaster
	detector   *AnomalyDetector
}

// New creates an engine from the given configuration.
func New(config Config) *Engine {
	return &Engine{
		config:     config,
		forecaster: NewForecaster(config.Forecast),
		detector:   NewAnomalyDetector(config.Anomaly),
	}
}

// Forecast extrapolates the value column of the dataset into future periods.
func (e *Engine) Forecast(dataset Dataset, opts ForecastOptions) ForecastResult {
	return e.forecaster.Forecast(dataset, opts)
}

// DetectAnomalies classifies every row of the dataset as normal or anomalous.
func (e *Engine) DetectAnomalies(dataset Dataset, opts AnomalyOptions) []RowAnomaly {
	return e.detector.Detect(dataset, opts)
}

// Cluster partitions the dataset's rows into k groups. Each call gets its
// own clusterer (and therefore its own random source) so concurrent calls
// never contend; set Config.Cluster.Seed for reproducible runs.
func (e *Engine) Cluster(dataset Dataset, opts ClusterOptions) ClusterResult {
	return NewClusterer(e.config.Cluster).Cluster(dataset, opts)
}
