package lumen

import (
	"context"
	"errors"
	"fmt"
)

// SourceRef lets an analysis request reference stored data instead of
// inlining rows. Exactly one source type applies per request.
type SourceRef struct {
	// Type is one of "prometheus", "sqlite", "s3".
	Type string `json:"type"`

	// Metric names a series ingested via remote-write (prometheus).
	Metric string `json:"metric,omitempty"`

	// Query is a read-only SQL statement (sqlite).
	Query string `json:"query,omitempty"`

	// Key is a CSV object key (s3).
	Key string `json:"key,omitempty"`
}

// ErrSourceUnavailable marks a referenced source that is not configured.
var ErrSourceUnavailable = errors.New("source not configured")

// SourceRegistry resolves SourceRefs against the configured dataset sources.
// Unconfigured sources stay nil and resolve to ErrSourceUnavailable.
type SourceRegistry struct {
	Prom   *PromSeriesStore
	SQLite *SQLiteSource
	S3     *S3Source
}

// NewSourceRegistry builds the configured sources. A source whose
// configuration is absent is simply left out; it does not fail the others.
func NewSourceRegistry(ctx context.Context, cfg SourcesConfig) (*SourceRegistry, error) {
	reg := &SourceRegistry{
		Prom: NewPromSeriesStore(cfg.Prometheus),
	}
	if cfg.SQLite.Path != "" {
		src, err := NewSQLiteSource(cfg.SQLite)
		if err != nil {
			return nil, err
		}
		reg.SQLite = src
	}
	if cfg.S3.Bucket != "" {
		src, err := NewS3Source(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		reg.S3 = src
	}
	return reg, nil
}

// Close releases source handles.
func (r *SourceRegistry) Close() error {
	if r.SQLite != nil {
		return r.SQLite.Close()
	}
	return nil
}

// Resolve produces the dataset for a request: inline rows when ref is nil,
// otherwise the referenced source's data.
func (r *SourceRegistry) Resolve(ctx context.Context, ref *SourceRef, inline []map[string]any) (Dataset, error) {
	if ref == nil {
		return DatasetFromMaps(inline), nil
	}
	switch ref.Type {
	case "prometheus":
		if r.Prom == nil {
			return nil, fmt.Errorf("prometheus: %w", ErrSourceUnavailable)
		}
		ds, ok := r.Prom.Dataset(ref.Metric)
		if !ok {
			return nil, fmt.Errorf("unknown metric %q", ref.Metric)
		}
		return ds, nil
	case "sqlite":
		if r.SQLite == nil {
			return nil, fmt.Errorf("sqlite: %w", ErrSourceUnavailable)
		}
		return r.SQLite.Query(ctx, ref.Query)
	case "s3":
		if r.S3 == nil {
			return nil, fmt.Errorf("s3: %w", ErrSourceUnavailable)
		}
		return r.S3.FetchCSV(ctx, ref.Key)
	default:
		return nil, fmt.Errorf("unknown source type %q", ref.Type)
	}
}
