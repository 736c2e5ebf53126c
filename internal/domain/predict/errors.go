package predict

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTrained is returned by operations that need a fitted model.
	ErrNotTrained = errors.New("model is not trained")
	// ErrInsufficientData is returned when no training example can be built.
	ErrInsufficientData = errors.New("no training data available")
	// ErrInvalidArtifact is returned when a persisted model cannot be decoded.
	ErrInvalidArtifact = errors.New("invalid model artifact")
	// ErrArtifactNotFound matches *ArtifactNotFoundError.
	ErrArtifactNotFound = errors.New("model artifact not found")
)

// ArtifactNotFoundError reports a missing model artifact.
type ArtifactNotFoundError struct {
	Path string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("model artifact not found: %s", e.Path)
}

func (e *ArtifactNotFoundError) Is(target error) bool { return target == ErrArtifactNotFound }

// ErrNoStore is returned by Save and Load when no artifact store is configured.
var ErrNoStore = errors.New("no artifact store configured")
