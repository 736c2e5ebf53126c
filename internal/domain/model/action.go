package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Payload keys as written into Event.Data.
const (
	KeyX         = "x"
	KeyY         = "y"
	KeyButton    = "button"
	KeyPressed   = "pressed"
	KeyScrollDX  = "scroll_dx"
	KeyScrollDY  = "scroll_dy"
	KeyKey       = "key"
	KeyModifiers = "modifiers"
	KeySensitive = "is_sensitive"
	KeyApp       = "app"
	KeyTitle     = "title"
)

// RedactedKey replaces key names captured in sensitive contexts.
const RedactedKey = "***"

// ErrMalformedPayload is returned when an event's data does not fit its category.
var ErrMalformedPayload = errors.New("malformed event payload")

// Action is the typed form of an event payload, one variant per category.
type Action interface {
	Category() Category
	// Payload encodes the action as event data. Numbers are float64 so the
	// result compares equal to a JSON-decoded payload.
	Payload() map[string]any
}

type Move struct {
	X, Y float64
}

type Click struct {
	X, Y    float64
	Button  string
	Pressed bool
}

type Scroll struct {
	X, Y   float64
	DX, DY float64
}

type KeyPress struct {
	Key       string
	Modifiers []string
	Sensitive bool
}

type KeyRelease struct {
	Key       string
	Modifiers []string
}

// Switch records a change of the foreground application.
type Switch struct {
	App   string
	Title string
}

func (Move) Category() Category       { return PointerMove }
func (Click) Category() Category      { return PointerClick }
func (Scroll) Category() Category     { return PointerScroll }
func (KeyPress) Category() Category   { return KeyDown }
func (KeyRelease) Category() Category { return KeyUp }
func (Switch) Category() Category     { return AppSwitch }

func (a Move) Payload() map[string]any {
	return map[string]any{KeyX: a.X, KeyY: a.Y}
}

func (a Click) Payload() map[string]any {
	return map[string]any{KeyX: a.X, KeyY: a.Y, KeyButton: a.Button, KeyPressed: a.Pressed}
}

func (a Scroll) Payload() map[string]any {
	return map[string]any{KeyX: a.X, KeyY: a.Y, KeyScrollDX: a.DX, KeyScrollDY: a.DY}
}

func (a KeyPress) Payload() map[string]any {
	return map[string]any{KeyKey: a.Key, KeyModifiers: anySlice(a.Modifiers), KeySensitive: a.Sensitive}
}

func (a KeyRelease) Payload() map[string]any {
	return map[string]any{KeyKey: a.Key, KeyModifiers: anySlice(a.Modifiers)}
}

func (a Switch) Payload() map[string]any {
	return map[string]any{KeyApp: a.App, KeyTitle: a.Title}
}

// DecodeAction converts an event payload into its typed action.
// Pointer actions require both coordinates and key actions require a key name.
func DecodeAction(e Event) (Action, error) {
	switch e.Category {
	case PointerMove:
		x, y, err := coords(e)
		if err != nil {
			return nil, err
		}
		return Move{X: x, Y: y}, nil
	case PointerClick:
		x, y, err := coords(e)
		if err != nil {
			return nil, err
		}
		c := Click{X: x, Y: y, Button: "left", Pressed: true}
		if b, ok := e.Str(KeyButton); ok && b != "" {
			c.Button = b
		}
		if p, ok := e.Data[KeyPressed].(bool); ok {
			c.Pressed = p
		}
		return c, nil
	case PointerScroll:
		x, y, err := coords(e)
		if err != nil {
			return nil, err
		}
		dx, _ := e.Float(KeyScrollDX)
		dy, _ := e.Float(KeyScrollDY)
		return Scroll{X: x, Y: y, DX: dx, DY: dy}, nil
	case KeyDown:
		k, err := keyName(e)
		if err != nil {
			return nil, err
		}
		return KeyPress{Key: k, Modifiers: modifiers(e), Sensitive: e.Sensitive()}, nil
	case KeyUp:
		k, err := keyName(e)
		if err != nil {
			return nil, err
		}
		return KeyRelease{Key: k, Modifiers: modifiers(e)}, nil
	case AppSwitch:
		app, _ := e.Str(KeyApp)
		title, _ := e.Str(KeyTitle)
		if app == "" {
			app = e.ActiveApp()
		}
		return Switch{App: app, Title: title}, nil
	default:
		return nil, fmt.Errorf("%w: unknown category %q", ErrMalformedPayload, e.Category)
	}
}

func coords(e Event) (float64, float64, error) {
	x, okX := e.Float(KeyX)
	y, okY := e.Float(KeyY)
	if !okX || !okY {
		return 0, 0, fmt.Errorf("%w: %s needs numeric x and y", ErrMalformedPayload, e.Category)
	}
	return x, y, nil
}

func keyName(e Event) (string, error) {
	k, ok := e.Str(KeyKey)
	if !ok || k == "" {
		return "", fmt.Errorf("%w: %s needs a key", ErrMalformedPayload, e.Category)
	}
	return k, nil
}

func modifiers(e Event) []string {
	switch v := e.Data[KeyModifiers].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, m := range v {
			if s, ok := m.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
