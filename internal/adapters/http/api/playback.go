package api

import (
	"fmt"
	"net/http"

	service "github.com/okian/mimic/internal/app"
)

// PlaybackHandler starts, stops and paces replay.
type PlaybackHandler struct {
	deps PlaybackDependencies
}

// NewPlaybackHandler creates a new playback handler.
func NewPlaybackHandler(deps PlaybackDependencies) *PlaybackHandler {
	return &PlaybackHandler{deps: deps}
}

// HandlePlay handles POST /recordings/{id}/play. The body is optional:
// {"speed":2,"start":0,"end":10,"categories":["mouse_click"]}. The request
// returns when playback ends.
func (h *PlaybackHandler) HandlePlay(w http.ResponseWriter, r *http.Request) {
	var req service.PlayRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	res, err := h.deps.Play(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleStop handles POST /playback/stop.
func (h *PlaybackHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": h.deps.StopPlayback()})
}

type speedRequest struct {
	Speed float64 `json:"speed"`
}

// HandleSpeed handles POST /playback/speed {"speed":1.5}.
func (h *PlaybackHandler) HandleSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if req.Speed <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: speed must be positive", ErrBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"speed": h.deps.SetSpeed(req.Speed)})
}
