// Package eventlog holds recorded sessions: an append-only Session while
// capturing and an immutable Log once sealed or loaded from disk.
package eventlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/mimic/internal/domain/model"
)

// Resolution is the capture screen size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OSInfo identifies the capture host's operating system.
type OSInfo struct {
	Platform string `json:"platform"`
	Version  string `json:"version"`
}

// Metadata describes the recording environment.
type Metadata struct {
	ScreenResolution Resolution `json:"screen_resolution"`
	OSInfo           OSInfo     `json:"os_info"`
	DeviceName       string     `json:"device_name"`
	UserID           string     `json:"user_id"`
}

// Statistics summarises a session or log.
type Statistics struct {
	Count       int
	Elapsed     time.Duration
	PerCategory map[model.Category]int
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source used for start and end times.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionID fixes the session id instead of generating a random one.
func WithSessionID(id uuid.UUID) Option {
	return func(s *Session) { s.id = id }
}

// Session is a recording in progress. Append is expected from a single
// producer; the mutex only makes Statistics safe to call concurrently.
type Session struct {
	mu     sync.Mutex
	id     uuid.UUID
	start  time.Time
	meta   Metadata
	events []model.Event
	sealed *Log
	now    func() time.Time
}

// NewSession starts an empty session.
func NewSession(meta Metadata, opts ...Option) *Session {
	s := &Session{
		id:   uuid.New(),
		meta: meta,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.start = s.now().UTC()
	return s
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Start returns the session start time.
func (s *Session) Start() time.Time { return s.start }

// Append adds an event to the end of the session.
func (s *Session) Append(e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed != nil {
		return ErrSealed
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, e.Category)
	}
	e = e.Clone()
	e.Timestamp = e.Timestamp.UTC()
	if n := len(s.events); n > 0 && e.Timestamp.Before(s.events[n-1].Timestamp) {
		return fmt.Errorf("%w: %s before %s", ErrOutOfOrder,
			e.Timestamp.Format(time.RFC3339Nano), s.events[n-1].Timestamp.Format(time.RFC3339Nano))
	}
	s.events = append(s.events, e)
	return nil
}

// Seal freezes the session and returns its immutable log. Calling Seal again
// returns the same log.
func (s *Session) Seal() *Log {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed != nil {
		return s.sealed
	}
	end := s.now().UTC()
	if end.Before(s.start) {
		end = s.start
	}
	s.sealed = &Log{
		id:     s.id,
		start:  s.start,
		end:    end,
		meta:   s.meta,
		events: s.events,
	}
	s.events = nil
	return s.sealed
}

// Sealed reports whether Seal has been called.
func (s *Session) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed != nil
}

// Statistics reports counts and elapsed time. For an open session elapsed is
// measured up to now.
func (s *Session) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed != nil {
		return s.sealed.Statistics()
	}
	return statistics(s.events, s.now().Sub(s.start))
}

// Log is an immutable recording.
type Log struct {
	id     uuid.UUID
	start  time.Time
	end    time.Time
	meta   Metadata
	events []model.Event
}

// New builds a log from already captured events, enforcing category validity
// and timestamp ordering.
func New(id uuid.UUID, start, end time.Time, meta Metadata, events []model.Event) (*Log, error) {
	cp := make([]model.Event, len(events))
	for i, e := range events {
		if !e.Category.Valid() {
			return nil, fmt.Errorf("event %d: %w: %q", i, ErrUnknownCategory, e.Category)
		}
		e = e.Clone()
		e.Timestamp = e.Timestamp.UTC()
		if i > 0 && e.Timestamp.Before(cp[i-1].Timestamp) {
			return nil, fmt.Errorf("event %d: %w", i, ErrOutOfOrder)
		}
		cp[i] = e
	}
	return &Log{id: id, start: start.UTC(), end: end.UTC(), meta: meta, events: cp}, nil
}

func (l *Log) ID() uuid.UUID      { return l.id }
func (l *Log) Start() time.Time   { return l.start }
func (l *Log) End() time.Time     { return l.end }
func (l *Log) Metadata() Metadata { return l.meta }
func (l *Log) Len() int           { return len(l.events) }

// Event returns a copy of the i-th event.
func (l *Log) Event(i int) model.Event { return l.events[i].Clone() }

// Events returns a copy of the event sequence.
func (l *Log) Events() []model.Event {
	out := make([]model.Event, len(l.events))
	for i, e := range l.events {
		out[i] = e.Clone()
	}
	return out
}

// Statistics reports counts and the start-to-end duration.
func (l *Log) Statistics() Statistics {
	return statistics(l.events, l.end.Sub(l.start))
}

func statistics(events []model.Event, elapsed time.Duration) Statistics {
	per := make(map[model.Category]int)
	for _, e := range events {
		per[e.Category]++
	}
	return Statistics{Count: len(events), Elapsed: elapsed, PerCategory: per}
}
