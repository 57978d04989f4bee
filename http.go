package lumen

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang/snappy"
)

// Server is the HTTP boundary around the analytics engine. It owns request
// validation and option defaulting; the engines behind it assume validated
// input and never raise for data-shaped problems.
type Server struct {
	engine  *Engine
	config  HTTPConfig
	auth    *authChecker
	sources *SourceRegistry
	stream  *StreamHandler
	srv     *http.Server
}

// NewServer wires the engine, sources, and boundary configuration together.
func NewServer(engine *Engine, cfg Config, sources *SourceRegistry) *Server {
	httpCfg := cfg.HTTP
	if httpCfg.Addr == "" {
		httpCfg.Addr = ":8095"
	}
	if httpCfg.MaxBodyBytes <= 0 {
		httpCfg.MaxBodyBytes = 10 * 1024 * 1024
	}
	s := &Server{
		engine:  engine,
		config:  httpCfg,
		auth:    newAuthChecker(cfg.Auth),
		sources: sources,
	}
	s.stream = NewStreamHandler(engine, sources, cfg.Stream)
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.wrap(s.handleHealth))
	mux.HandleFunc("/api/v1/forecast", s.wrap(s.handleForecast))
	mux.HandleFunc("/api/v1/anomalies", s.wrap(s.handleAnomalies))
	mux.HandleFunc("/api/v1/clusters", s.wrap(s.handleClusters))
	mux.HandleFunc("/api/v1/prom/write", s.wrap(s.sources.Prom.Handler(s.config.MaxBodyBytes)))
	mux.HandleFunc("/api/v1/prom/metrics", s.wrap(s.handlePromMetrics))
	mux.HandleFunc("/api/v1/stream", s.wrap(s.stream.Handle))
	return mux
}

// Start runs the server until Stop is called.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  durationOr(s.config.ReadTimeout, 30*time.Second),
		WriteTimeout: durationOr(s.config.WriteTimeout, 30*time.Second),
	}
	slog.Info("analytics API listening", "addr", s.config.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// wrap applies panic recovery, request logging, and authentication. A panic
// inside a handler becomes the generic "failed to compute" 500; given
// upstream validation it should be rare.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	handler := s.auth.middleware(next)
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("handler panic", "path", r.URL.Path, "panic", rec)
				jsonError(w, http.StatusInternalServerError, "internal", "failed to compute")
			}
		}()
		handler(w, r)
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handlePromMetrics(w http.ResponseWriter, r *http.Request) {
	jsonSuccess(w, s.sources.Prom.Metrics())
}

// forecastRequest is the wire form of a forecast invocation.
type forecastRequest struct {
	Data            []map[string]any `json:"data"`
	Source          *SourceRef       `json:"source,omitempty"`
	DateColumn      string           `json:"dateColumn"`
	ValueColumn     string           `json:"valueColumn"`
	Periods         int              `json:"periods"`
	Model           string           `json:"model,omitempty"`
	ConfidenceLevel float64          `json:"confidenceLevel,omitempty"`
}

type forecastResponse struct {
	Forecast Dataset   `json:"forecast"`
	Lower    []float64 `json:"lower,omitempty"`
	Upper    []float64 `json:"upper,omitempty"`
	Model    string    `json:"model"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	dataset, ok := s.resolveDataset(w, r, req.Source, req.Data)
	if !ok {
		return
	}
	if req.DateColumn == "" || req.ValueColumn == "" {
		jsonError(w, http.StatusBadRequest, "bad_request", "dateColumn and valueColumn are required")
		return
	}
	if req.Periods <= 0 {
		jsonError(w, http.StatusBadRequest, "bad_request", "periods must be a positive integer")
		return
	}

	result := s.engine.Forecast(dataset, ForecastOptions{
		DateColumn:      req.DateColumn,
		ValueColumn:     req.ValueColumn,
		Periods:         req.Periods,
		Model:           ParseForecastModel(req.Model),
		ConfidenceLevel: req.ConfidenceLevel,
	})
	jsonSuccess(w, forecastResponse{
		Forecast: result.Forecast,
		Lower:    result.Lower,
		Upper:    result.Upper,
		Model:    result.Model.String(),
	})
}

// anomalyRequest is the wire form of an anomaly detection invocation.
type anomalyRequest struct {
	Data        []map[string]any `json:"data"`
	Source      *SourceRef       `json:"source,omitempty"`
	ValueColumn string           `json:"valueColumn"`
	Method      string           `json:"method,omitempty"`
	Sensitivity float64          `json:"sensitivity,omitempty"`
}

type anomalyResponse struct {
	Anomalies []RowAnomaly `json:"anomalies"`
	Method    string       `json:"method"`
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	var req anomalyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	dataset, ok := s.resolveDataset(w, r, req.Source, req.Data)
	if !ok {
		return
	}
	if req.ValueColumn == "" {
		jsonError(w, http.StatusBadRequest, "bad_request", "valueColumn is required")
		return
	}

	method := ParseAnomalyMethod(req.Method)
	anomalies := s.engine.DetectAnomalies(dataset, AnomalyOptions{
		ValueColumn: req.ValueColumn,
		Method:      method,
		Sensitivity: req.Sensitivity,
	})
	jsonSuccess(w, anomalyResponse{Anomalies: anomalies, Method: method.String()})
}

// clusterRequest is the wire form of a clustering invocation.
type clusterRequest struct {
	Data          []map[string]any `json:"data"`
	Source        *SourceRef       `json:"source,omitempty"`
	Features      []string         `json:"features"`
	K             int              `json:"k"`
	MaxIterations int              `json:"maxIterations,omitempty"`
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	var req clusterRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	dataset, ok := s.resolveDataset(w, r, req.Source, req.Data)
	if !ok {
		return
	}
	if len(req.Features) == 0 {
		jsonError(w, http.StatusBadRequest, "bad_request", "features must not be empty")
		return
	}
	if req.K < 1 {
		jsonError(w, http.StatusBadRequest, "bad_request", "k must be a positive integer")
		return
	}

	result := s.engine.Cluster(dataset, ClusterOptions{
		Features:      req.Features,
		K:             req.K,
		MaxIterations: req.MaxIterations,
	})
	jsonSuccess(w, result)
}

// decodeBody reads a JSON request body, transparently handling gzip and
// snappy content encodings, and enforcing the configured size cap.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		jsonError(w, http.StatusMethodNotAllowed, "bad_request", "POST required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("read body: %v", err))
		return false
	}

	switch r.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err == nil {
			body, err = io.ReadAll(gz)
		}
		if err != nil {
			jsonError(w, http.StatusBadRequest, "bad_request", "invalid gzip body")
			return false
		}
	case "snappy":
		body, err = snappy.Decode(nil, body)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "bad_request", "invalid snappy body")
			return false
		}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		jsonError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

// resolveDataset produces the request's dataset and enforces the non-empty
// rule the engines rely on.
func (s *Server) resolveDataset(w http.ResponseWriter, r *http.Request, ref *SourceRef, inline []map[string]any) (Dataset, bool) {
	if ref == nil && len(inline) == 0 {
		jsonError(w, http.StatusBadRequest, "bad_request", "data must be a non-empty array")
		return nil, false
	}
	dataset, err := s.sources.Resolve(r.Context(), ref, inline)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "bad_request", err.Error())
		return nil, false
	}
	if len(dataset) == 0 {
		jsonError(w, http.StatusBadRequest, "bad_request", "resolved dataset is empty")
		return nil, false
	}
	return dataset, true
}

// JSON response helpers.

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "err", err)
	}
}

func jsonSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func jsonError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":    "error",
		"errorType": errorType,
		"error":     message,
	}); err != nil {
		slog.Error("failed to encode error response", "err", err)
	}
}
