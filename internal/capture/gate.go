package capture

import (
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/pkg/metrics"
)

// sensitiveKeywords flag a window title as a credential prompt.
var sensitiveKeywords = []string{"password", "credential", "login", "signin", "auth"}

// Gate marks key events typed into sensitive windows and optionally masks
// the key. The zero value applies the keyword check without masking.
type Gate struct {
	patterns  []*regexp.Regexp
	anonymize bool
}

// NewGate compiles extra title patterns on top of the built-in keywords.
func NewGate(anonymize bool, patterns []string) (*Gate, error) {
	g := &Gate{anonymize: anonymize}
	for _, expr := range patterns {
		trimmed := strings.TrimSpace(expr)
		if trimmed == "" {
			continue
		}
		rx, err := regexp.Compile(trimmed)
		if err != nil {
			return nil, fmt.Errorf("sensitive pattern %q: %w", trimmed, err)
		}
		g.patterns = append(g.patterns, rx)
	}
	return g, nil
}

// SensitiveContext reports whether input in ctx should be treated as secret.
func (g *Gate) SensitiveContext(ctx *model.Context) bool {
	if ctx == nil || ctx.WindowTitle == "" {
		return false
	}
	title := strings.ToLower(ctx.WindowTitle)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	for _, rx := range g.patterns {
		if rx.MatchString(ctx.WindowTitle) {
			return true
		}
	}
	return false
}

// Apply returns e with key events in sensitive contexts flagged, and their
// key replaced by model.RedactedKey when anonymising. Other events pass
// through unchanged. The input payload is never mutated.
func (g *Gate) Apply(e model.Event) model.Event {
	if e.Category != model.KeyDown && e.Category != model.KeyUp {
		return e
	}
	if !g.SensitiveContext(e.Context) {
		return e
	}

	data := make(map[string]any, len(e.Data)+1)
	maps.Copy(data, e.Data)
	data[model.KeySensitive] = true
	if g.anonymize {
		data[model.KeyKey] = model.RedactedKey
	}
	e.Data = data
	metrics.RecordEventSensitive()
	return e
}
