package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/okian/mimic/internal/domain/model"
)

// SchemaVersion is written into every recording. Recordings without the
// field are treated as version 1.
const SchemaVersion = 1

type wireLog struct {
	SchemaVersion *int        `json:"schema_version,omitempty"`
	SessionID     string      `json:"session_id"`
	StartTime     string      `json:"start_time"`
	EndTime       string      `json:"end_time"`
	Metadata      Metadata    `json:"metadata"`
	Interactions  []wireEvent `json:"interactions"`
}

type wireEvent struct {
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Context   *model.Context `json:"context,omitempty"`
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// MarshalJSON writes the recording artifact format.
func (l *Log) MarshalJSON() ([]byte, error) {
	v := SchemaVersion
	w := wireLog{
		SchemaVersion: &v,
		SessionID:     l.id.String(),
		StartTime:     formatTime(l.start),
		EndTime:       formatTime(l.end),
		Metadata:      l.meta,
		Interactions:  make([]wireEvent, len(l.events)),
	}
	for i, e := range l.events {
		w.Interactions[i] = wireEvent{
			Timestamp: formatTime(e.Timestamp),
			Type:      string(e.Category),
			Data:      e.Data,
			Context:   e.Context,
		}
	}
	return json.Marshal(w)
}

// Encode writes l to w as indented JSON.
func Encode(w io.Writer, l *Log) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}

// Decode reads a recording artifact. Any failure is a *DecodeError naming the
// offending field.
func Decode(r io.Reader) (*Log, error) {
	var w wireLog
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, &DecodeError{Field: te.Field, Err: err}
		}
		return nil, &DecodeError{Err: err}
	}

	if w.SchemaVersion != nil && *w.SchemaVersion > SchemaVersion {
		return nil, &DecodeError{
			Field: "schema_version",
			Err:   fmt.Errorf("%w: %d", ErrUnsupportedVersion, *w.SchemaVersion),
		}
	}

	id, err := uuid.Parse(w.SessionID)
	if err != nil {
		return nil, &DecodeError{Field: "session_id", Err: err}
	}
	start, err := parseTime(w.StartTime)
	if err != nil {
		return nil, &DecodeError{Field: "start_time", Err: err}
	}
	end := start
	if w.EndTime != "" {
		if end, err = parseTime(w.EndTime); err != nil {
			return nil, &DecodeError{Field: "end_time", Err: err}
		}
	}

	l := &Log{id: id, start: start, end: end, meta: w.Metadata, events: make([]model.Event, len(w.Interactions))}
	for i, we := range w.Interactions {
		ts, err := parseTime(we.Timestamp)
		if err != nil {
			return nil, &DecodeError{Field: fmt.Sprintf("interactions[%d].timestamp", i), Err: err}
		}
		if i > 0 && ts.Before(l.events[i-1].Timestamp) {
			return nil, &DecodeError{Field: fmt.Sprintf("interactions[%d].timestamp", i), Err: ErrOutOfOrder}
		}
		cat := model.Category(we.Type)
		if !cat.Valid() {
			return nil, &DecodeError{
				Field: fmt.Sprintf("interactions[%d].type", i),
				Err:   fmt.Errorf("%w: %q", ErrUnknownCategory, we.Type),
			}
		}
		l.events[i] = model.Event{Timestamp: ts, Category: cat, Data: we.Data, Context: we.Context}
	}
	return l, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrMissingField
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
