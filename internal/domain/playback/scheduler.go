// Package playback replays recorded sessions through an Injector while
// reconstructing the original timing, scaled by a speed factor.
package playback

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/mimic/internal/domain/eventlog"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/pkg/logger"
	"github.com/okian/mimic/pkg/metrics"
)

// MinSpeed is the lowest accepted speed factor.
const MinSpeed = 0.1

const (
	stateIdle int32 = iota
	statePlaying
)

// Result summarises one playback run.
type Result struct {
	Selected   int  `json:"selected"`
	Dispatched int  `json:"dispatched"`
	Skipped    int  `json:"skipped"`
	Failed     int  `json:"failed"`
	Stopped    bool `json:"stopped"`
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Scheduler replays logs one at a time.
type Scheduler struct {
	injector Injector
	logger   logger.Logger
	sleep    SleepFunc

	speed   atomic.Uint64 // math.Float64bits
	state   atomic.Int32
	stopReq atomic.Bool
	stopMu  sync.Mutex // orders StopIfPlaying against the end of a run
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSpeed sets the initial speed factor (clamped to MinSpeed).
func WithSpeed(speed float64) Option {
	return func(s *Scheduler) { s.speed.Store(math.Float64bits(clampSpeed(speed))) }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSleep replaces the delay implementation.
func WithSleep(fn SleepFunc) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// New returns an idle scheduler dispatching through inj at speed 1.
func New(inj Injector, opts ...Option) *Scheduler {
	s := &Scheduler{
		injector: inj,
		logger:   logger.Get().Named("playback"),
		sleep:    sleepContext,
	}
	s.speed.Store(math.Float64bits(1.0))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func clampSpeed(v float64) float64 {
	if math.IsNaN(v) || v < MinSpeed {
		return MinSpeed
	}
	return v
}

// SetSpeed changes the speed factor, clamped to MinSpeed. It takes effect at
// the next delay.
func (s *Scheduler) SetSpeed(speed float64) {
	v := clampSpeed(speed)
	s.speed.Store(math.Float64bits(v))
	metrics.UpdatePlaybackSpeed(v)
}

// Speed returns the current speed factor.
func (s *Scheduler) Speed() float64 { return math.Float64frombits(s.speed.Load()) }

// IsPlaying reports whether a run is in progress.
func (s *Scheduler) IsPlaying() bool { return s.state.Load() == statePlaying }

// Stop asks the current run to end before its next event. A delay already in
// progress completes first. When nothing is playing, the request applies to
// the next run, which then dispatches nothing.
func (s *Scheduler) Stop() { s.stopReq.Store(true) }

// StopIfPlaying asks the current run to end and reports whether one was in
// progress. Unlike Stop it never leaves a request behind for a later run.
func (s *Scheduler) StopIfPlaying() bool {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if s.state.Load() != statePlaying {
		return false
	}
	s.stopReq.Store(true)
	return true
}

type playOptions struct {
	start, end int
	categories map[model.Category]bool
	speed      float64
}

// PlayOption narrows what a run replays.
type PlayOption func(*playOptions)

// WithRange keeps events [start, end) of the category-filtered sequence.
// end -1 means through the last event. Out-of-range bounds are clamped.
func WithRange(start, end int) PlayOption {
	return func(o *playOptions) {
		o.start, o.end = start, end
	}
}

// WithCategories replays only the given categories. No categories means all.
func WithCategories(cats ...model.Category) PlayOption {
	return func(o *playOptions) {
		if len(cats) == 0 {
			o.categories = nil
			return
		}
		o.categories = make(map[model.Category]bool, len(cats))
		for _, c := range cats {
			o.categories[c] = true
		}
	}
}

// WithRunSpeed sets the speed factor once the run has started. A rejected
// run leaves the current speed untouched. Zero keeps the current speed.
func WithRunSpeed(speed float64) PlayOption {
	return func(o *playOptions) { o.speed = speed }
}

func buildOptions(opts []PlayOption) playOptions {
	o := playOptions{start: 0, end: -1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type selected struct {
	index int
	event model.Event
}

// Select applies the category filter first and the range second, returning
// the log positions that a run with opts would replay.
func Select(l *eventlog.Log, opts ...PlayOption) []int {
	sel := selectEvents(l, buildOptions(opts))
	out := make([]int, len(sel))
	for i, s := range sel {
		out[i] = s.index
	}
	return out
}

func selectEvents(l *eventlog.Log, o playOptions) []selected {
	var filtered []selected
	for i := 0; i < l.Len(); i++ {
		e := l.Event(i)
		if o.categories == nil || o.categories[e.Category] {
			filtered = append(filtered, selected{index: i, event: e})
		}
	}

	start, end := o.start, o.end
	if end < 0 || end > len(filtered) {
		end = len(filtered)
	}
	if start < 0 {
		start = 0
	}
	if start >= end {
		return nil
	}
	return filtered[start:end]
}

// Play replays l, blocking until every selected event has been handled, Stop
// takes effect, or ctx is done. Waits between events are the recorded gap
// between consecutive selected events divided by the speed factor. Sensitive
// events take part in pacing but are never dispatched. Dispatch failures are
// logged as *DispatchError and counted; they do not end the run.
func (s *Scheduler) Play(ctx context.Context, l *eventlog.Log, opts ...PlayOption) (Result, error) {
	if !s.state.CompareAndSwap(stateIdle, statePlaying) {
		return Result{}, ErrAlreadyPlaying
	}
	metrics.SetPlaybackActive(true)
	defer func() {
		s.stopMu.Lock()
		s.stopReq.Store(false)
		s.state.Store(stateIdle)
		s.stopMu.Unlock()
		metrics.SetPlaybackActive(false)
	}()

	o := buildOptions(opts)
	if o.speed > 0 {
		s.SetSpeed(o.speed)
	}
	events := selectEvents(l, o)
	res := Result{Selected: len(events)}
	s.logger.Info(ctx, "playback started",
		logger.String("session_id", l.ID().String()),
		logger.Int("selected", res.Selected),
		logger.Float64("speed", s.Speed()),
	)

	err := s.run(ctx, events, &res)

	outcome := "completed"
	switch {
	case err != nil:
		outcome = "cancelled"
	case res.Stopped:
		outcome = "stopped"
	}
	metrics.RecordPlaybackRun(outcome)
	s.logger.Info(ctx, "playback finished",
		logger.String("outcome", outcome),
		logger.Int("dispatched", res.Dispatched),
		logger.Int("skipped", res.Skipped),
		logger.Int("failed", res.Failed),
	)
	return res, err
}

func (s *Scheduler) run(ctx context.Context, events []selected, res *Result) error {
	for i, cur := range events {
		if s.stopReq.Load() {
			res.Stopped = true
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if i > 0 {
			if gap := cur.event.Timestamp.Sub(events[i-1].event.Timestamp); gap > 0 {
				d := time.Duration(float64(gap) / s.Speed())
				metrics.RecordPlaybackDelay(d)
				if err := s.sleep(ctx, d); err != nil {
					return err
				}
			}
		}

		if cur.event.Sensitive() {
			res.Skipped++
			metrics.RecordPlaybackSkipped()
			continue
		}

		if err := s.dispatch(ctx, cur); err != nil {
			res.Failed++
			metrics.RecordPlaybackDispatchError(string(cur.event.Category))
			s.logger.Warn(ctx, "dispatch failed", logger.Error(err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		res.Dispatched++
		metrics.RecordPlaybackDispatched(string(cur.event.Category))
	}
	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, cur selected) error {
	a, err := model.DecodeAction(cur.event)
	if err != nil {
		return &DispatchError{Index: cur.index, Category: cur.event.Category, Err: err}
	}
	if err := s.injector.Dispatch(ctx, a); err != nil {
		return &DispatchError{Index: cur.index, Category: cur.event.Category, Err: err}
	}
	return nil
}
