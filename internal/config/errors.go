package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every validation failure; ErrLoadConfig wraps
// provider and decode failures.
var (
	ErrInvalidConfig = errors.New("config: invalid setting")
	ErrLoadConfig    = errors.New("config: load failed")

	// ErrUnknownBackend is returned for an artifact_backend other than "local" or "s3".
	ErrUnknownBackend = fmt.Errorf("%w: unknown artifact_backend", ErrInvalidConfig)
)
