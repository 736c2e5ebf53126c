package api

import (
	"fmt"
	"net/http"
	"strconv"
)

const defaultPreviewLimit = 10

// RecordingsHandler serves recording listings and previews.
type RecordingsHandler struct {
	deps RecordingDependencies
}

// NewRecordingsHandler creates a new recordings handler.
func NewRecordingsHandler(deps RecordingDependencies) *RecordingsHandler {
	return &RecordingsHandler{deps: deps}
}

// HandleList handles GET /recordings.
func (h *RecordingsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.ListRecordings(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": list, "count": len(list)})
}

// HandlePreview handles GET /recordings/{id}/preview?limit=N.
func (h *RecordingsHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	limit := defaultPreviewLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: invalid limit %q", ErrBadRequest, raw))
			return
		}
		limit = n
	}

	summaries, err := h.deps.Preview(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": r.PathValue("id"), "interactions": summaries})
}
