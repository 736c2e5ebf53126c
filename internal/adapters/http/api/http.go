// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	service "github.com/okian/mimic/internal/app"
	"github.com/okian/mimic/internal/domain/playback"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	RecordingDependencies
	PlaybackDependencies
	ModelDependencies
}

// RecordingDependencies serve the recording read endpoints.
type RecordingDependencies interface {
	ListRecordings(ctx context.Context) ([]service.Recording, error)
	Preview(ctx context.Context, sessionID string, limit int) ([]playback.Summary, error)
}

// PlaybackDependencies drive replay.
type PlaybackDependencies interface {
	Play(ctx context.Context, sessionID string, req service.PlayRequest) (playback.Result, error)
	StopPlayback() bool
	SetSpeed(speed float64) float64
}

// ModelDependencies train and query the predictor.
type ModelDependencies interface {
	Train(ctx context.Context) (service.TrainResult, error)
	Predict(ctx context.Context, sessionID string, contextSize int) (service.PredictResult, error)
	FeatureImportance() (map[string]float64, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	recordingsHandler *RecordingsHandler
	playbackHandler   *PlaybackHandler
	modelHandler      *ModelHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		recordingsHandler: NewRecordingsHandler(deps),
		playbackHandler:   NewPlaybackHandler(deps),
		modelHandler:      NewModelHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /recordings", MetricsMiddleware(s.recordingsHandler.HandleList, "recordings"))
	mux.HandleFunc("GET /recordings/{id}/preview", MetricsMiddleware(s.recordingsHandler.HandlePreview, "preview"))

	mux.HandleFunc("POST /recordings/{id}/play", MetricsMiddleware(s.playbackHandler.HandlePlay, "play"))
	mux.HandleFunc("POST /playback/stop", MetricsMiddleware(s.playbackHandler.HandleStop, "stop"))
	mux.HandleFunc("POST /playback/speed", MetricsMiddleware(s.playbackHandler.HandleSpeed, "speed"))

	mux.HandleFunc("POST /model/train", MetricsMiddleware(s.modelHandler.HandleTrain, "train"))
	mux.HandleFunc("POST /model/predict", MetricsMiddleware(s.modelHandler.HandlePredict, "predict"))
	mux.HandleFunc("GET /model/importance", MetricsMiddleware(s.modelHandler.HandleImportance, "importance"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure writes err with the status its kind maps to.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

// decodeBody reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
