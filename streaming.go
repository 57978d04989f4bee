package lumen

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamConfig configures the WebSocket boundary.
type StreamConfig struct {
	// Enabled turns on the /api/v1/stream endpoint.
	Enabled bool `yaml:"enabled"`

	// PingInterval is how often to ping idle clients, as a
	// time.ParseDuration string (default "30s").
	PingInterval string `yaml:"ping_interval"`

	// WriteTimeout bounds each WebSocket write (default "10s").
	WriteTimeout string `yaml:"write_timeout"`

	// ProgressEvery emits a clustering progress message every N
	// iterations (default 1, every iteration).
	ProgressEvery int `yaml:"progress_every"`
}

// DefaultStreamConfig returns default streaming configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled:       true,
		PingInterval:  "30s",
		WriteTimeout:  "10s",
		ProgressEvery: 1,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamRequest is one analysis request on the WebSocket. Kind selects the
// operation; the remaining fields mirror the REST request bodies.
type StreamRequest struct {
	Kind string `json:"kind"` // "forecast", "anomalies", "clusters"
	ID   string `json:"id,omitempty"`

	Data   []map[string]any `json:"data,omitempty"`
	Source *SourceRef       `json:"source,omitempty"`

	// Forecast fields.
	DateColumn      string  `json:"dateColumn,omitempty"`
	ValueColumn     string  `json:"valueColumn,omitempty"`
	Periods         int     `json:"periods,omitempty"`
	Model           string  `json:"model,omitempty"`
	ConfidenceLevel float64 `json:"confidenceLevel,omitempty"`

	// Anomaly fields.
	Method      string  `json:"method,omitempty"`
	Sensitivity float64 `json:"sensitivity,omitempty"`

	// Cluster fields.
	Features      []string `json:"features,omitempty"`
	K             int      `json:"k,omitempty"`
	MaxIterations int      `json:"maxIterations,omitempty"`
}

// StreamMessage is one server-to-client message.
type StreamMessage struct {
	Type      string  `json:"type"` // "result", "progress", "error"
	ID        string  `json:"id,omitempty"`
	Data      any     `json:"data,omitempty"`
	Iteration int     `json:"iteration,omitempty"`
	Movement  float64 `json:"movement,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// StreamHandler serves interactive analysis over a WebSocket: each request
// message yields a result message, and clustering additionally streams
// per-iteration progress so dashboards can animate convergence.
type StreamHandler struct {
	engine  *Engine
	sources *SourceRegistry
	config  StreamConfig
}

// NewStreamHandler creates the handler.
func NewStreamHandler(engine *Engine, sources *SourceRegistry, config StreamConfig) *StreamHandler {
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = 1
	}
	return &StreamHandler{engine: engine, sources: sources, config: config}
}

// Handle upgrades the connection and serves requests until the client
// disconnects.
func (h *StreamHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !h.config.Enabled {
		http.Error(w, "streaming disabled", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer func() { _ = conn.Close() }()

	writeTimeout := durationOr(h.config.WriteTimeout, 10*time.Second)
	var writeMu sync.Mutex
	send := func(msg StreamMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(msg)
	}

	// Keep idle connections alive.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(durationOr(h.config.PingInterval, 30*time.Second))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				writeMu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		var req StreamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("stream closed", "err", err)
			}
			return
		}
		if err := send(h.serve(r, &req, send)); err != nil {
			return
		}
	}
}

// serve runs one request and builds the final message for it.
func (h *StreamHandler) serve(r *http.Request, req *StreamRequest, send func(StreamMessage) error) StreamMessage {
	fail := func(msg string) StreamMessage {
		return StreamMessage{Type: "error", ID: req.ID, Error: msg}
	}

	if req.Source == nil && len(req.Data) == 0 {
		return fail("data must be a non-empty array")
	}
	dataset, err := h.sources.Resolve(r.Context(), req.Source, req.Data)
	if err != nil {
		return fail(err.Error())
	}
	if len(dataset) == 0 {
		return fail("resolved dataset is empty")
	}

	switch req.Kind {
	case "forecast":
		if req.DateColumn == "" || req.ValueColumn == "" {
			return fail("dateColumn and valueColumn are required")
		}
		if req.Periods <= 0 {
			return fail("periods must be a positive integer")
		}
		result := h.engine.Forecast(dataset, ForecastOptions{
			DateColumn:      req.DateColumn,
			ValueColumn:     req.ValueColumn,
			Periods:         req.Periods,
			Model:           ParseForecastModel(req.Model),
			ConfidenceLevel: req.ConfidenceLevel,
		})
		return StreamMessage{Type: "result", ID: req.ID, Data: forecastResponse{
			Forecast: result.Forecast,
			Lower:    result.Lower,
			Upper:    result.Upper,
			Model:    result.Model.String(),
		}}

	case "anomalies":
		if req.ValueColumn == "" {
			return fail("valueColumn is required")
		}
		method := ParseAnomalyMethod(req.Method)
		anomalies := h.engine.DetectAnomalies(dataset, AnomalyOptions{
			ValueColumn: req.ValueColumn,
			Method:      method,
			Sensitivity: req.Sensitivity,
		})
		return StreamMessage{Type: "result", ID: req.ID, Data: anomalyResponse{
			Anomalies: anomalies,
			Method:    method.String(),
		}}

	case "clusters":
		if len(req.Features) == 0 {
			return fail("features must not be empty")
		}
		if req.K < 1 {
			return fail("k must be a positive integer")
		}
		result := h.engine.Cluster(dataset, ClusterOptions{
			Features:      req.Features,
			K:             req.K,
			MaxIterations: req.MaxIterations,
			OnIteration: func(iteration int, movement float64) {
				if iteration%h.config.ProgressEvery != 0 {
					return
				}
				_ = send(StreamMessage{
					Type:      "progress",
					ID:        req.ID,
					Iteration: iteration,
					Movement:  movement,
				})
			},
		})
		return StreamMessage{Type: "result", ID: req.ID, Data: result}

	default:
		return fail("unknown kind: " + req.Kind)
	}
}
