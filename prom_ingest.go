package lumen

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
)

// PromIngestConfig configures Prometheus remote-write ingestion.
type PromIngestConfig struct {
	// Enabled turns on the /api/v1/prom/write endpoint.
	Enabled bool `yaml:"enabled"`

	// MaxSamplesPerSeries bounds the in-memory window kept per metric
	// (default: 10000). Older samples are dropped first.
	MaxSamplesPerSeries int `yaml:"max_samples_per_series"`
}

// DefaultPromIngestConfig returns default ingestion configuration.
func DefaultPromIngestConfig() PromIngestConfig {
	return PromIngestConfig{
		Enabled:             false,
		MaxSamplesPerSeries: 10000,
	}
}

type promSample struct {
	ts    int64 // unix milliseconds
	value float64
}

// PromSeriesStore keeps a bounded window of remote-write samples per metric
// so that forecast and anomaly requests can reference a scraped series by
// name instead of inlining rows.
type PromSeriesStore struct {
	config PromIngestConfig
	mu     sync.RWMutex
	series map[string][]promSample
}

// NewPromSeriesStore creates an empty store.
func NewPromSeriesStore(config PromIngestConfig) *PromSeriesStore {
	if config.MaxSamplesPerSeries <= 0 {
		config.MaxSamplesPerSeries = 10000
	}
	return &PromSeriesStore{
		config: config,
		series: make(map[string][]promSample),
	}
}

// Append stores every sample of a decoded remote-write request, keyed by the
// __name__ label. Per-metric windows are trimmed from the front.
func (s *PromSeriesStore) Append(req *prompb.WriteRequest) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for i := range req.Timeseries {
		ts := &req.Timeseries[i]
		metric := ""
		for _, label := range ts.Labels {
			if label.Name == "__name__" {
				metric = label.Value
				break
			}
		}
		if metric == "" {
			continue
		}
		window := s.series[metric]
		for _, sample := range ts.Samples {
			window = append(window, promSample{ts: sample.Timestamp, value: sample.Value})
			total++
		}
		if len(window) > s.config.MaxSamplesPerSeries {
			window = window[len(window)-s.config.MaxSamplesPerSeries:]
		}
		s.series[metric] = window
	}
	return total
}

// Metrics lists the stored metric names, sorted.
func (s *PromSeriesStore) Metrics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dataset converts a stored series into the tabular form the engines
// consume: one record per sample with "timestamp" and "value" columns, in
// ascending time order.
func (s *PromSeriesStore) Dataset(metric string) (Dataset, bool) {
	s.mu.RLock()
	window, ok := s.series[metric]
	if ok {
		window = append([]promSample(nil), window...)
	}
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	sort.Slice(window, func(i, j int) bool { return window[i].ts < window[j].ts })
	ds := make(Dataset, len(window))
	for i, sample := range window {
		ds[i] = Record{
			"timestamp": TimeValue(time.UnixMilli(sample.ts).UTC()),
			"value":     Number(sample.value),
		}
	}
	return ds, true
}

// Handler accepts snappy-compressed protobuf remote-write payloads.
func (s *PromSeriesStore) Handler(maxBodyBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.config.Enabled {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			http.Error(w, fmt.Sprintf("snappy decode: %v", err), http.StatusBadRequest)
			return
		}
		var req prompb.WriteRequest
		if err := req.Unmarshal(decoded); err != nil {
			http.Error(w, fmt.Sprintf("protobuf decode: %v", err), http.StatusBadRequest)
			return
		}
		s.Append(&req)
		w.WriteHeader(http.StatusAccepted)
	}
}
