package playback

import (
	"context"

	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/pkg/logger"
)

// Injector executes one action against the host (pointer, keyboard, window).
type Injector interface {
	Dispatch(ctx context.Context, a model.Action) error
}

// InjectorFunc adapts a function to Injector.
type InjectorFunc func(ctx context.Context, a model.Action) error

// Dispatch calls f.
func (f InjectorFunc) Dispatch(ctx context.Context, a model.Action) error { return f(ctx, a) }

// LogInjector is a dry-run injector that only logs each action.
type LogInjector struct {
	logger logger.Logger
}

// NewLogInjector returns a dry-run injector writing to l.
func NewLogInjector(l logger.Logger) *LogInjector {
	return &LogInjector{logger: l}
}

// Dispatch logs a and never fails.
func (i *LogInjector) Dispatch(ctx context.Context, a model.Action) error {
	i.logger.Debug(ctx, "dry-run dispatch",
		logger.String("category", string(a.Category())),
		logger.Any("action", a),
	)
	return nil
}
