// Package worker drains the capture queue into a recording session.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/okian/mimic/internal/adapters/mq/queue"
	"github.com/okian/mimic/internal/capture"
	"github.com/okian/mimic/internal/domain/eventlog"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/pkg/logger"
	"github.com/okian/mimic/pkg/metrics"
)

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Queue defines how the recorder receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Appender accepts events in order. *eventlog.Session satisfies it.
type Appender interface {
	Append(e model.Event) error
}

// Counts summarises what a recorder has processed.
type Counts struct {
	Appended int64
	Rejected int64
}

// Recorder is the single writer of a session: exactly one goroutine takes
// events off the queue, passes them through the gate and appends them.
type Recorder struct {
	queue Queue
	sink  Appender
	gate  *capture.Gate
	name  string

	started  atomic.Bool
	done     chan struct{}
	appended atomic.Int64
	rejected atomic.Int64

	logger logger.Logger
}

// NewRecorder creates a recorder writing into sink.
func NewRecorder(q Queue, sink Appender, opts ...Option) *Recorder {
	r := &Recorder{
		queue:  q,
		sink:   sink,
		gate:   &capture.Gate{},
		name:   "recorder",
		done:   make(chan struct{}),
		logger: logger.Get().Named("recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.name != "recorder" {
		r.logger = r.logger.Named(r.name)
	}
	return r
}

// Start launches the drain loop. Calling it more than once has no effect.
func (r *Recorder) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.run(ctx)
}

// Run drains the queue on the calling goroutine until the queue is closed
// and empty, or ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	r.run(ctx)
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	events := r.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Warn(ctx, "recorder stopped before queue drained", logger.Error(ctx.Err()))
			return
		case event, ok := <-events:
			if !ok {
				r.logger.Debug(ctx, "queue drained",
					logger.Any("appended", r.appended.Load()),
					logger.Any("rejected", r.rejected.Load()),
				)
				return
			}
			if err := r.process(event); err != nil {
				r.logger.Warn(ctx, "event rejected", logger.Error(err))
			}
		}
	}
}

func (r *Recorder) process(event Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	event = r.gate.Apply(event)
	if err := r.sink.Append(event); err != nil {
		r.rejected.Add(1)
		metrics.RecordEventRejected(rejectReason(err))
		metrics.RecordErrorByComponent("recorder", rejectReason(err))
		return fmt.Errorf("append %s: %w", event.Category, err)
	}
	r.appended.Add(1)
	metrics.RecordEventCaptured(string(event.Category))
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, eventlog.ErrOutOfOrder):
		return "out_of_order"
	case errors.Is(err, eventlog.ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, eventlog.ErrSealed):
		return "sealed"
	default:
		return "append_error"
	}
}

// Wait blocks until the drain loop has finished. Close the queue first.
func (r *Recorder) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.logger.Warn(ctx, "wait timed out")
		return fmt.Errorf("recorder wait: %w", ctx.Err())
	}
}

// Counts returns how many events were appended and rejected so far.
func (r *Recorder) Counts() Counts {
	return Counts{Appended: r.appended.Load(), Rejected: r.rejected.Load()}
}
