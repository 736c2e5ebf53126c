// Package model contains the input-event types passed between layers.
package model

import (
	"maps"
	"slices"
	"time"
)

// Category is the closed set of recorded interaction kinds.
// The string value is the persisted wire name.
type Category string

const (
	PointerMove   Category = "mouse_move"
	PointerClick  Category = "mouse_click"
	PointerScroll Category = "mouse_scroll"
	KeyDown       Category = "key_press"
	KeyUp         Category = "key_release"
	AppSwitch     Category = "app_switch"

	// Unknown is reported by prediction when there is nothing to predict from.
	// It is never a valid event category.
	Unknown Category = "unknown"
)

// categories is the fixed ordering used for feature encoding.
var categories = [...]Category{PointerMove, PointerClick, PointerScroll, KeyDown, KeyUp, AppSwitch}

// Categories returns every valid category in index order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories[:])
	return out
}

// Index returns the category's fixed ordinal, or -1 when it is not in the set.
func (c Category) Index() int {
	for i, v := range categories {
		if v == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c is one of the recorded categories.
func (c Category) Valid() bool { return c.Index() >= 0 }

// CategoryAt is the inverse of Index.
func CategoryAt(i int) (Category, bool) {
	if i < 0 || i >= len(categories) {
		return Unknown, false
	}
	return categories[i], true
}

// Context describes where an event happened. Resolving it is left to the capture source.
type Context struct {
	ActiveApp    string `json:"active_app"`
	WindowTitle  string `json:"window_title"`
	ScreenRegion string `json:"screen_region"`
}

// Event is a single captured interaction.
type Event struct {
	Timestamp time.Time      // UTC capture time
	Category  Category       // interaction kind
	Data      map[string]any // category-specific payload, see Action
	Context   *Context       // optional; nil when unknown
}

// NewEvent builds an event whose payload is the encoded action.
func NewEvent(ts time.Time, a Action, ctx *Context) Event {
	return Event{
		Timestamp: ts.UTC(),
		Category:  a.Category(),
		Data:      a.Payload(),
		Context:   ctx,
	}
}

// Sensitive reports whether the capture gate flagged this event, or whether it
// is a key event whose name was redacted. Sensitive events are never replayed.
func (e Event) Sensitive() bool {
	if v, ok := e.Data[KeySensitive].(bool); ok && v {
		return true
	}
	if e.Category == KeyDown || e.Category == KeyUp {
		k, _ := e.Str(KeyKey)
		return k == RedactedKey
	}
	return false
}

// Clone returns a copy of e that shares no payload or context memory with it.
func (e Event) Clone() Event {
	if e.Data != nil {
		data := maps.Clone(e.Data)
		for k, v := range data {
			switch s := v.(type) {
			case []any:
				data[k] = slices.Clone(s)
			case []string:
				data[k] = slices.Clone(s)
			}
		}
		e.Data = data
	}
	if e.Context != nil {
		c := *e.Context
		e.Context = &c
	}
	return e
}

// ActiveApp returns the context's application name, or "" without a context.
func (e Event) ActiveApp() string {
	if e.Context == nil {
		return ""
	}
	return e.Context.ActiveApp
}

// Float returns a numeric payload value; missing or non-numeric values yield ok=false.
func (e Event) Float(key string) (float64, bool) {
	return number(e.Data[key])
}

// Str returns a string payload value.
func (e Event) Str(key string) (string, bool) {
	s, ok := e.Data[key].(string)
	return s, ok
}
