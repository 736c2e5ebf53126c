package playback

import (
	"errors"
	"fmt"

	"github.com/okian/mimic/internal/domain/model"
)

// ErrAlreadyPlaying is returned when Play is called during another run.
var ErrAlreadyPlaying = errors.New("playback already in progress")

// DispatchError reports an event that could not be replayed. Playback
// continues past it.
type DispatchError struct {
	Index    int // position in the log
	Category model.Category
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch interaction %d (%s): %v", e.Index, e.Category, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
