package eventlog

import (
	"errors"
	"fmt"
)

// Sentinel errors for recording lifecycle and persistence.
var (
	ErrSealed             = errors.New("session is sealed")
	ErrUnknownCategory    = errors.New("unknown interaction category")
	ErrOutOfOrder         = errors.New("timestamp precedes previous interaction")
	ErrUnsupportedVersion = errors.New("unsupported schema version")
	ErrMissingField       = errors.New("missing required field")
	ErrNotFound           = errors.New("recording not found")
)

// DecodeError reports a malformed recording artifact. Field names the
// offending JSON path, e.g. "interactions[3].timestamp"; it is empty when the
// document itself could not be parsed.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode recording: %v", e.Err)
	}
	return fmt.Sprintf("decode recording: %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
