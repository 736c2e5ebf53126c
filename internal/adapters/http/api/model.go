package api

import (
	"fmt"
	"net/http"
	"strings"
)

// ModelHandler trains and queries the predictor.
type ModelHandler struct {
	deps ModelDependencies
}

// NewModelHandler creates a new model handler.
func NewModelHandler(deps ModelDependencies) *ModelHandler {
	return &ModelHandler{deps: deps}
}

// HandleTrain handles POST /model/train.
func (h *ModelHandler) HandleTrain(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Train(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type predictRequest struct {
	SessionID   string `json:"session_id"`
	ContextSize int    `json:"context_size"`
}

// HandlePredict handles POST /model/predict {"session_id":"...","context_size":5}.
func (h *ModelHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing session_id", ErrBadRequest))
		return
	}
	res, err := h.deps.Predict(r.Context(), req.SessionID, req.ContextSize)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleImportance handles GET /model/importance.
func (h *ModelHandler) HandleImportance(w http.ResponseWriter, r *http.Request) {
	imp, err := h.deps.FeatureImportance()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imp)
}
