package worker

import (
	"github.com/okian/mimic/internal/capture"
	"github.com/okian/mimic/pkg/logger"
)

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithName sets the recorder name for identification and logging.
func WithName(name string) Option {
	return func(r *Recorder) {
		if name != "" {
			r.name = name
		}
	}
}

// WithGate sets the sensitivity gate applied before each append.
func WithGate(g *capture.Gate) Option {
	return func(r *Recorder) {
		if g != nil {
			r.gate = g
		}
	}
}

// WithLogger sets a custom logger for the recorder.
func WithLogger(logger logger.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}
