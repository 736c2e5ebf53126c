package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/mimic/internal/adapters/http/api"
	service "github.com/okian/mimic/internal/app"
	"github.com/okian/mimic/internal/domain/eventlog"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/internal/domain/playback"
	"github.com/okian/mimic/internal/domain/predict"
	. "github.com/smartystreets/goconvey/convey"
)

const sessionID = "0f8fad5b-d9cb-469f-a165-70867728950e"

// mockDependencies implements api.Dependencies with canned answers.
type mockDependencies struct {
	recordings []service.Recording
	listErr    error
	previewErr error
	playErr    error
	trainErr   error
	predictErr error
	impErr     error
	playing    bool

	lastPlay    service.PlayRequest
	lastLimit   int
	lastContext int
	speed       float64
}

func (m *mockDependencies) ListRecordings(context.Context) ([]service.Recording, error) {
	return m.recordings, m.listErr
}

func (m *mockDependencies) Preview(_ context.Context, id string, limit int) ([]playback.Summary, error) {
	m.lastLimit = limit
	if m.previewErr != nil {
		return nil, m.previewErr
	}
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	out := []playback.Summary{
		{Index: 0, Timestamp: ts, Category: model.PointerMove, Description: "Mouse move to (1, 2)"},
		{Index: 1, Timestamp: ts.Add(time.Second), Category: model.PointerClick, Description: "Mouse click left at (1, 2)"},
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockDependencies) Play(_ context.Context, id string, req service.PlayRequest) (playback.Result, error) {
	m.lastPlay = req
	if m.playErr != nil {
		return playback.Result{}, m.playErr
	}
	return playback.Result{Selected: 3, Dispatched: 2, Skipped: 1}, nil
}

func (m *mockDependencies) StopPlayback() bool { return m.playing }

func (m *mockDependencies) SetSpeed(speed float64) float64 {
	m.speed = max(speed, playback.MinSpeed)
	return m.speed
}

func (m *mockDependencies) Train(context.Context) (service.TrainResult, error) {
	if m.trainErr != nil {
		return service.TrainResult{}, m.trainErr
	}
	return service.TrainResult{
		Metrics:    predict.Metrics{TrainAccuracy: 0.9, TestAccuracy: 0.8, TrainCount: 12, TestCount: 3},
		Location:   "models/behavior_model.model",
		Recordings: 3,
	}, nil
}

func (m *mockDependencies) Predict(_ context.Context, id string, contextSize int) (service.PredictResult, error) {
	m.lastContext = contextSize
	if m.predictErr != nil {
		return service.PredictResult{}, m.predictErr
	}
	return service.PredictResult{
		Prediction:  predict.Prediction{Category: model.PointerClick, Confidence: 0.75},
		ContextSize: 5,
	}, nil
}

func (m *mockDependencies) FeatureImportance() (map[string]float64, error) {
	if m.impErr != nil {
		return nil, m.impErr
	}
	return map[string]float64{"interaction_type": 0.5, "position_x": 0.5}, nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats(context.Context) map[string]any {
	return m.stats
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func newMux(deps *mockDependencies) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}})
	mux := http.NewServeMux()
	server.Register(mux)
	return mux
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{
			recordings: []service.Recording{{SessionID: sessionID, Path: "recorded_data/x.json", EventCount: 2}},
		}
		mux := newMux(deps)

		Convey("The health endpoint serves Prometheus metrics", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "# HELP")
		})

		Convey("The stats endpoint returns the provider's map", func() {
			w := serve(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["started"], ShouldEqual, true)
			So(body["generatedAt"], ShouldNotBeEmpty)
		})

		Convey("The recordings endpoint lists recordings", func() {
			w := serve(mux, http.MethodGet, "/recordings", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["count"], ShouldEqual, 1.0)
			So(w.Body.String(), ShouldContainSubstring, sessionID)
		})

		Convey("Unknown routes are not found", func() {
			w := serve(mux, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Wrong methods are rejected by the mux", func() {
			w := serve(mux, http.MethodGet, "/model/train", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestPreviewHandler(t *testing.T) {
	Convey("Given the preview endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("The default limit is ten", func() {
			w := serve(mux, http.MethodGet, "/recordings/"+sessionID+"/preview", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 10)
			So(w.Body.String(), ShouldContainSubstring, `"type":"mouse_move"`)
		})

		Convey("The limit is taken from the query", func() {
			w := serve(mux, http.MethodGet, "/recordings/"+sessionID+"/preview?limit=1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 1)
			items, _ := decode(w)["interactions"].([]any)
			So(items, ShouldHaveLength, 1)
		})

		Convey("A malformed limit is a bad request", func() {
			w := serve(mux, http.MethodGet, "/recordings/"+sessionID+"/preview?limit=ten", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("A missing recording is not found", func() {
			deps.previewErr = fmt.Errorf("%w: %s", eventlog.ErrNotFound, sessionID)
			w := serve(mux, http.MethodGet, "/recordings/"+sessionID+"/preview", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A corrupt recording is unprocessable", func() {
			deps.previewErr = &eventlog.DecodeError{Field: "interactions[0].timestamp", Err: errors.New("bad")}
			w := serve(mux, http.MethodGet, "/recordings/"+sessionID+"/preview", "")
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
		})
	})
}

func TestPlaybackHandlers(t *testing.T) {
	Convey("Given the playback endpoints", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("Play accepts an empty body", func() {
			w := serve(mux, http.MethodPost, "/recordings/"+sessionID+"/play", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["dispatched"], ShouldEqual, 2.0)
			So(body["skipped"], ShouldEqual, 1.0)
		})

		Convey("Play forwards speed, range and categories", func() {
			w := serve(mux, http.MethodPost, "/recordings/"+sessionID+"/play",
				`{"speed":2,"start":1,"end":4,"categories":["mouse_click"]}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastPlay.Speed, ShouldEqual, 2.0)
			So(*deps.lastPlay.Start, ShouldEqual, 1)
			So(*deps.lastPlay.End, ShouldEqual, 4)
			So(deps.lastPlay.Categories, ShouldResemble, []string{"mouse_click"})
		})

		Convey("Malformed JSON is a bad request", func() {
			w := serve(mux, http.MethodPost, "/recordings/"+sessionID+"/play", `{"speed":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A concurrent play is a conflict", func() {
			deps.playErr = playback.ErrAlreadyPlaying
			w := serve(mux, http.MethodPost, "/recordings/"+sessionID+"/play", "")
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(decode(w)["code"], ShouldEqual, "already_playing")
		})

		Convey("Invalid service input is a bad request", func() {
			deps.playErr = fmt.Errorf("%w: unknown category", service.ErrInvalidRequest)
			w := serve(mux, http.MethodPost, "/recordings/"+sessionID+"/play", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Stop reports whether playback was running", func() {
			deps.playing = true
			w := serve(mux, http.MethodPost, "/playback/stop", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["stopped"], ShouldEqual, true)
		})

		Convey("Speed is clamped by the dependency", func() {
			w := serve(mux, http.MethodPost, "/playback/speed", `{"speed":0.01}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["speed"], ShouldEqual, playback.MinSpeed)
		})

		Convey("A non-positive speed is rejected", func() {
			w := serve(mux, http.MethodPost, "/playback/speed", `{"speed":0}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestModelHandlers(t *testing.T) {
	Convey("Given the model endpoints", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("Train returns the metrics", func() {
			w := serve(mux, http.MethodPost, "/model/train", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"training_samples":12`)
			So(w.Body.String(), ShouldContainSubstring, `"test_samples":3`)
		})

		Convey("Train without enough data is a conflict", func() {
			deps.trainErr = service.ErrNotEnoughRecordings
			w := serve(mux, http.MethodPost, "/model/train", "")
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(decode(w)["code"], ShouldEqual, "insufficient_data")
		})

		Convey("Predict returns the category and confidence", func() {
			w := serve(mux, http.MethodPost, "/model/predict", `{"session_id":"`+sessionID+`","context_size":7}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastContext, ShouldEqual, 7)
			body := decode(w)
			So(body["type"], ShouldEqual, "mouse_click")
			So(body["confidence"], ShouldEqual, 0.75)
		})

		Convey("Predict requires a session id", func() {
			w := serve(mux, http.MethodPost, "/model/predict", `{}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Predict with an untrained model is a conflict", func() {
			deps.predictErr = predict.ErrNotTrained
			w := serve(mux, http.MethodPost, "/model/predict", `{"session_id":"`+sessionID+`"}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(decode(w)["code"], ShouldEqual, "not_trained")
		})

		Convey("Importance is returned as a map", func() {
			w := serve(mux, http.MethodGet, "/model/importance", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["interaction_type"], ShouldEqual, 0.5)
		})

		Convey("A missing artifact is not found", func() {
			deps.impErr = &predict.ArtifactNotFoundError{Path: "models/behavior_model.model"}
			w := serve(mux, http.MethodGet, "/model/importance", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Unexpected failures are internal errors", func() {
			deps.impErr = errors.New("disk on fire")
			w := serve(mux, http.MethodGet, "/model/importance", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["message"], ShouldEqual, "disk on fire")
		})
	})
}
