package capture

import (
	"context"
	"math/rand"
	"time"

	"github.com/okian/mimic/internal/domain/model"
)

// Synthetic emits a reproducible stream of plausible desktop activity.
type Synthetic struct {
	count    int
	interval time.Duration
	seed     int64
	start    time.Time
	apps     []string
	realtime bool
}

// SyntheticOption configures a Synthetic source.
type SyntheticOption func(*Synthetic)

// WithCount sets how many events are emitted.
func WithCount(n int) SyntheticOption {
	return func(s *Synthetic) {
		if n >= 0 {
			s.count = n
		}
	}
}

// WithInterval sets the spacing between event timestamps.
func WithInterval(d time.Duration) SyntheticOption {
	return func(s *Synthetic) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSeed sets the random seed.
func WithSeed(seed int64) SyntheticOption {
	return func(s *Synthetic) { s.seed = seed }
}

// WithStart sets the first event's timestamp.
func WithStart(t time.Time) SyntheticOption {
	return func(s *Synthetic) { s.start = t.UTC() }
}

// WithApps sets the applications activity is spread across.
func WithApps(apps ...string) SyntheticOption {
	return func(s *Synthetic) {
		if len(apps) > 0 {
			s.apps = apps
		}
	}
}

// WithRealtime makes the source wait one interval between events.
func WithRealtime(enabled bool) SyntheticOption {
	return func(s *Synthetic) { s.realtime = enabled }
}

// NewSynthetic returns a source of 100 events, 100ms apart, seed 42.
func NewSynthetic(opts ...SyntheticOption) *Synthetic {
	s := &Synthetic{
		count:    100,
		interval: 100 * time.Millisecond,
		seed:     42,
		start:    time.Now().UTC(),
		apps:     []string{"editor", "browser", "terminal"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnEvent emits the configured events in timestamp order.
func (s *Synthetic) OnEvent(ctx context.Context, handler func(model.Event)) error {
	rng := rand.New(rand.NewSource(s.seed)) //nolint:gosec // reproducible fixtures
	x, y := 500.0, 400.0
	app := s.apps[0]

	var ticker *time.Ticker
	if s.realtime {
		ticker = time.NewTicker(s.interval)
		defer ticker.Stop()
	}

	// A pending release keeps presses and releases paired.
	var pending model.Action
	for i := 0; i < s.count; i++ {
		if ticker != nil && i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		var a model.Action
		switch {
		case pending != nil:
			a, pending = pending, nil
		default:
			switch r := rng.Intn(10); {
			case r < 4:
				x += float64(rng.Intn(81) - 40)
				y += float64(rng.Intn(61) - 30)
				a = model.Move{X: x, Y: y}
			case r < 6:
				a = model.Click{X: x, Y: y, Button: "left", Pressed: true}
				pending = model.Click{X: x, Y: y, Button: "left", Pressed: false}
			case r < 7:
				a = model.Scroll{X: x, Y: y, DY: float64(rng.Intn(7) - 3)}
			case r < 9:
				key := string(rune('a' + rng.Intn(26)))
				a = model.KeyPress{Key: key}
				pending = model.KeyRelease{Key: key}
			default:
				app = s.apps[rng.Intn(len(s.apps))]
				a = model.Switch{App: app, Title: app}
			}
		}

		ts := s.start.Add(time.Duration(i) * s.interval)
		handler(model.NewEvent(ts, a, &model.Context{ActiveApp: app, WindowTitle: app}))
	}
	return nil
}
