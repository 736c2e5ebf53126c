package catalog

import "errors"

// ErrNotFound is returned when a session id has no catalog entry.
var ErrNotFound = errors.New("catalog: recording not found")
