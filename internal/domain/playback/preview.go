package playback

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/mimic/internal/domain/eventlog"
	"github.com/okian/mimic/internal/domain/model"
)

// Summary is a human-readable line for one recorded event.
type Summary struct {
	Index       int            `json:"index"`
	Timestamp   time.Time      `json:"timestamp"`
	Category    model.Category `json:"type"`
	Description string         `json:"summary"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d. [%s] %s", s.Index, s.Timestamp.Format(time.RFC3339Nano), s.Description)
}

// Preview summarises the first limit events of l.
func Preview(l *eventlog.Log, limit int) []Summary {
	if l == nil || limit <= 0 {
		return []Summary{}
	}
	n := min(limit, l.Len())
	out := make([]Summary, n)
	for i := 0; i < n; i++ {
		e := l.Event(i)
		out[i] = Summary{Index: i, Timestamp: e.Timestamp, Category: e.Category, Description: Describe(e)}
	}
	return out
}

// Describe renders one event, e.g. "Click left at (10, 20)" or "Key Press: a".
func Describe(e model.Event) string {
	switch e.Category {
	case model.PointerMove:
		return fmt.Sprintf("Move to (%s, %s)", num(e, model.KeyX), num(e, model.KeyY))
	case model.PointerClick:
		button, _ := e.Str(model.KeyButton)
		if button == "" {
			button = "left"
		}
		return fmt.Sprintf("Click %s at (%s, %s)", button, num(e, model.KeyX), num(e, model.KeyY))
	case model.PointerScroll:
		dy, _ := e.Float(model.KeyScrollDY)
		return "Scroll by " + strconv.FormatFloat(dy, 'f', -1, 64)
	case model.KeyDown, model.KeyUp:
		key, _ := e.Str(model.KeyKey)
		return fmt.Sprintf("%s: %s", title(e.Category), key)
	case model.AppSwitch:
		app, _ := e.Str(model.KeyApp)
		if app == "" {
			app = e.ActiveApp()
		}
		return "Switch to " + app
	default:
		return string(e.Category)
	}
}

func num(e model.Event, key string) string {
	v, ok := e.Float(key)
	if !ok {
		return "?"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// title turns "key_press" into "Key Press".
func title(c model.Category) string {
	parts := strings.Split(string(c), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
