package service

import (
	"errors"
	"fmt"

	"github.com/okian/mimic/internal/domain/predict"
)

var (
	// ErrNotEnoughRecordings is returned by Train below min_recordings. It
	// matches predict.ErrInsufficientData.
	ErrNotEnoughRecordings = fmt.Errorf("not enough recordings: %w", predict.ErrInsufficientData)
	// ErrEmptyRecording is returned when a prediction needs at least one event.
	ErrEmptyRecording = errors.New("recording has no interactions")
	// ErrInvalidRequest wraps malformed caller input (bad ids, unknown categories).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotStarted is returned by operations that need Start to have run.
	ErrNotStarted = errors.New("service not started")
)
