package queue

import "errors"

// Enqueue failures. Both count as dropped events.
var (
	ErrFull   = errors.New("capture queue: full")
	ErrClosed = errors.New("capture queue: closed")
)
