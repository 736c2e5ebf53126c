// Package capture defines how raw input events enter the recorder: the
// Source contract implemented by OS hooks, the sensitivity Gate applied
// before events are stored, and a deterministic Synthetic source.
package capture

import (
	"context"

	"github.com/okian/mimic/internal/domain/model"
)

// Source delivers captured events to handler until ctx is done or the source
// is exhausted. Handlers are invoked from a single goroutine.
type Source interface {
	OnEvent(ctx context.Context, handler func(model.Event)) error
}

// SourceFunc adapts a function literal to Source.
type SourceFunc func(ctx context.Context, handler func(model.Event)) error

// OnEvent calls the underlying function.
func (f SourceFunc) OnEvent(ctx context.Context, handler func(model.Event)) error {
	return f(ctx, handler)
}

// Replay returns a source emitting events in order, e.g. from a loaded log.
func Replay(events []model.Event) Source {
	return SourceFunc(func(ctx context.Context, handler func(model.Event)) error {
		for _, e := range events {
			if err := ctx.Err(); err != nil {
				return err
			}
			handler(e)
		}
		return nil
	})
}
