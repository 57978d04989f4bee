package lumen

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the analytics engine and its
// HTTP boundary.
type Config struct {
	// Forecast holds the smoothing constants for the forecast engine.
	Forecast ForecastConfig `yaml:"forecast"`

	// Anomaly holds the base thresholds for the anomaly detector.
	Anomaly AnomalyConfig `yaml:"anomaly"`

	// Cluster holds iteration limits and seeding for K-Means.
	Cluster ClusterConfig `yaml:"cluster"`

	// HTTP configures the API server.
	HTTP HTTPConfig `yaml:"http"`

	// Auth configures API-key authentication. Nil or disabled means no
	// authentication is required.
	Auth *AuthConfig `yaml:"auth"`

	// Sources configures the upstream dataset sources that analysis
	// requests may reference instead of inlining rows.
	Sources SourcesConfig `yaml:"sources"`

	// Stream configures the WebSocket boundary.
	Stream StreamConfig `yaml:"stream"`
}

// HTTPConfig configures the HTTP API server.
type HTTPConfig struct {
	// Enabled turns the HTTP server on.
	Enabled bool `yaml:"enabled"`

	// Addr is the listen address, e.g. ":8095".
	Addr string `yaml:"addr"`

	// MaxBodyBytes caps the request body size. The boundary is responsible
	// for bounding request size; the engines have no internal limits.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// ReadTimeout and WriteTimeout apply to the underlying http.Server,
	// as time.ParseDuration strings ("30s", "1m").
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

// durationOr parses a duration string, substituting def when empty or invalid.
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// SourcesConfig configures the pluggable dataset sources.
type SourcesConfig struct {
	// SQLite configures the local SQL query source.
	SQLite SQLiteSourceConfig `yaml:"sqlite"`

	// S3 configures the CSV-object source.
	S3 S3SourceConfig `yaml:"s3"`

	// Prometheus configures remote-write ingestion.
	Prometheus PromIngestConfig `yaml:"prometheus"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Forecast: DefaultForecastConfig(),
		Anomaly:  DefaultAnomalyConfig(),
		Cluster:  DefaultClusterConfig(),
		HTTP: HTTPConfig{
			Enabled:      false,
			Addr:         ":8095",
			MaxBodyBytes: 10 * 1024 * 1024,
			ReadTimeout:  "30s",
			WriteTimeout: "30s",
		},
		Sources: SourcesConfig{
			Prometheus: DefaultPromIngestConfig(),
		},
		Stream: DefaultStreamConfig(),
	}
}

// LoadConfigFile reads a YAML configuration file over the defaults, so a
// file only needs to state what it changes.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return cfg, nil
}
