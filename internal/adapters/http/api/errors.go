package api

import (
	"errors"
	"net/http"

	service "github.com/okian/mimic/internal/app"
	"github.com/okian/mimic/internal/domain/eventlog"
	"github.com/okian/mimic/internal/domain/playback"
	"github.com/okian/mimic/internal/domain/predict"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// statusFor maps domain errors onto HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	var decodeErr *eventlog.DecodeError
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, eventlog.ErrNotFound), errors.Is(err, predict.ErrArtifactNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, playback.ErrAlreadyPlaying):
		return http.StatusConflict, "already_playing"
	case errors.Is(err, predict.ErrNotTrained):
		return http.StatusConflict, "not_trained"
	case errors.Is(err, predict.ErrInsufficientData):
		return http.StatusConflict, "insufficient_data"
	case errors.Is(err, service.ErrEmptyRecording):
		return http.StatusConflict, "empty_recording"
	case errors.As(err, &decodeErr), errors.Is(err, predict.ErrInvalidArtifact):
		return http.StatusUnprocessableEntity, "invalid_artifact"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
