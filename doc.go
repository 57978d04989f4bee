// Package lumen provides the tabular analytics engine behind an interactive
// business-intelligence application: stateless numerical routines that take a
// result set of rows from an arbitrary upstream query and derive forecasts,
// flag anomalies, or partition rows into clusters.
//
// # Basic Usage
//
// Create an engine with default configuration and run an analysis in-process:
//
//	engine := lumen.New(lumen.DefaultConfig())
//	result := engine.Forecast(dataset, lumen.ForecastOptions{
//	    DateColumn:  "day",
//	    ValueColumn: "revenue",
//	    Periods:     14,
//	    Model:       lumen.ForecastModelExponentialSmoothing,
//	})
//
// Detect outliers in a numeric column:
//
//	anomalies := engine.DetectAnomalies(dataset, lumen.AnomalyOptions{
//	    ValueColumn: "revenue",
//	    Method:      lumen.AnomalyMethodIQR,
//	})
//
// Partition rows over selected feature columns:
//
//	clusters := engine.Cluster(dataset, lumen.ClusterOptions{
//	    Features: []string{"revenue", "orders"},
//	    K:        3,
//	})
//
// # Design
//
// Every operation is a pure function of its inputs: no I/O, no shared mutable
// state, and degenerate inputs (too little history, k exceeding the row
// count, non-numeric cells) produce defined degenerate results instead of
// errors. K-Means' random initialization is the only non-determinism; pin
// Config.Cluster.Seed for reproducible runs.
//
// The optional HTTP and WebSocket boundaries (Server, StreamHandler) perform
// request validation and option defaulting, and resolve datasets from
// pluggable sources: inline JSON rows, read-only SQLite queries, CSV objects
// in S3, or series ingested via Prometheus remote write.
package lumen
