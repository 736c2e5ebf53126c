package seed

import "errors"

// Error constants.
var (
	ErrInvalidConfig = errors.New("seed: invalid config")
	ErrRequest       = errors.New("seed: request failed")
)
