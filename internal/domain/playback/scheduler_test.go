package playback_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/okian/mimic/internal/domain/eventlog"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/internal/domain/playback"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

type stamped struct {
	at time.Duration
	a  model.Action
}

func buildLog(t *testing.T, items ...stamped) *eventlog.Log {
	t.Helper()
	s := eventlog.NewSession(eventlog.Metadata{})
	for _, it := range items {
		if err := s.Append(model.NewEvent(t0.Add(it.at), it.a, nil)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return s.Seal()
}

// recorder collects dispatched actions and requested delays.
type recorder struct {
	mu      sync.Mutex
	actions []model.Action
	delays  []time.Duration
}

func (r *recorder) Dispatch(_ context.Context, a model.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
	return nil
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func TestPlayFilterThenSlice(t *testing.T) {
	Convey("Given a log interleaving moves and key presses", t, func() {
		l := buildLog(t,
			stamped{0, model.Move{X: 0, Y: 0}},
			stamped{time.Second, model.KeyPress{Key: "a"}},
			stamped{2 * time.Second, model.Move{X: 2, Y: 2}},
			stamped{3 * time.Second, model.KeyPress{Key: "b"}},
			stamped{4 * time.Second, model.Move{X: 4, Y: 4}},
		)
		rec := &recorder{}
		s := playback.New(rec, playback.WithSleep(rec.sleep))

		Convey("When only moves in range [1, 3) are replayed", func() {
			res, err := s.Play(context.Background(), l,
				playback.WithCategories(model.PointerMove),
				playback.WithRange(1, 3),
			)

			Convey("Then the range should apply to the filtered sequence", func() {
				So(err, ShouldBeNil)
				So(res, ShouldResemble, playback.Result{Selected: 2, Dispatched: 2})
				So(rec.actions, ShouldResemble, []model.Action{model.Move{X: 2, Y: 2}, model.Move{X: 4, Y: 4}})
			})

			Convey("Then delays should use the gap between selected events", func() {
				So(rec.delays, ShouldResemble, []time.Duration{2 * time.Second})
			})
		})

		Convey("When the range is out of bounds", func() {
			So(playback.Select(l, playback.WithRange(-3, 99)), ShouldResemble, []int{0, 1, 2, 3, 4})
			So(playback.Select(l, playback.WithRange(4, 2)), ShouldBeEmpty)
			So(playback.Select(l, playback.WithRange(2, -1)), ShouldResemble, []int{2, 3, 4})
		})

		Convey("When no options are given", func() {
			res, err := s.Play(context.Background(), l)
			So(err, ShouldBeNil)
			So(res.Dispatched, ShouldEqual, 5)
			So(len(rec.delays), ShouldEqual, 4)
		})
	})
}

func TestProperty_FilterThenSlice(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	cats := model.Categories()[:5] // key and pointer kinds with trivial payloads

	properties.Property("selection equals filtering by category then slicing", prop.ForAll(
		func(kinds []int, want int, start, end int) bool {
			s := eventlog.NewSession(eventlog.Metadata{})
			for i, k := range kinds {
				e := model.Event{Timestamp: t0.Add(time.Duration(i) * time.Second), Category: cats[k]}
				if err := s.Append(e); err != nil {
					return false
				}
			}
			l := s.Seal()

			var filtered []int
			for i, k := range kinds {
				if cats[k] == cats[want] {
					filtered = append(filtered, i)
				}
			}
			lo, hi := start, end
			if hi < 0 || hi > len(filtered) {
				hi = len(filtered)
			}
			if lo < 0 {
				lo = 0
			}
			var expected []int
			if lo < hi {
				expected = filtered[lo:hi]
			}

			got := playback.Select(l, playback.WithCategories(cats[want]), playback.WithRange(start, end))
			if len(got) != len(expected) {
				return false
			}
			for i := range got {
				if got[i] != expected[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 4)),
		gen.IntRange(0, 4),
		gen.IntRange(-2, 10),
		gen.IntRange(-1, 10),
	))

	properties.TestingRun(t)
}

func TestPlaySensitivity(t *testing.T) {
	Convey("Given a log with a sensitive key press", t, func() {
		l := buildLog(t,
			stamped{0, model.Move{X: 1, Y: 1}},
			stamped{time.Second, model.KeyPress{Key: model.RedactedKey, Sensitive: true}},
			stamped{3 * time.Second, model.Move{X: 3, Y: 3}},
		)
		rec := &recorder{}
		s := playback.New(rec, playback.WithSleep(rec.sleep))

		Convey("When replayed even with an explicit filter for key presses", func() {
			res, err := s.Play(context.Background(), l)
			So(err, ShouldBeNil)

			keysOnly, err := s.Play(context.Background(), l, playback.WithCategories(model.KeyDown))
			So(err, ShouldBeNil)

			Convey("Then the sensitive event should never be dispatched", func() {
				So(res.Dispatched, ShouldEqual, 2)
				So(res.Skipped, ShouldEqual, 1)
				So(keysOnly, ShouldResemble, playback.Result{Selected: 1, Skipped: 1})
				for _, a := range rec.actions {
					So(a.Category(), ShouldNotEqual, model.KeyDown)
				}
			})

			Convey("Then it should still take part in pacing", func() {
				So(rec.delays[:2], ShouldResemble, []time.Duration{time.Second, 2 * time.Second})
			})
		})
	})
}

func TestPlayRedactedKeysFromDisk(t *testing.T) {
	Convey("Given a stored recording whose redacted keys carry no sensitivity flag", t, func() {
		l, err := eventlog.Decode(strings.NewReader(`{"session_id":"6f1c2a52-4b7e-4c39-9d51-2d0f4c2b8a11","start_time":"2024-01-01T00:00:00Z",
			"interactions":[
				{"timestamp":"2024-01-01T00:00:01Z","type":"key_press","data":{"key":"***"}},
				{"timestamp":"2024-01-01T00:00:02Z","type":"key_release","data":{"key":"***"}},
				{"timestamp":"2024-01-01T00:00:03Z","type":"key_press","data":{"key":"a"}}]}`))
		So(err, ShouldBeNil)

		rec := &recorder{}
		s := playback.New(rec, playback.WithSleep(rec.sleep))

		Convey("When it is replayed", func() {
			res, err := s.Play(context.Background(), l)

			Convey("Then only the plain key should be dispatched", func() {
				So(err, ShouldBeNil)
				So(res, ShouldResemble, playback.Result{Selected: 3, Dispatched: 1, Skipped: 2})
				So(rec.actions, ShouldResemble, []model.Action{model.KeyPress{Key: "a"}})
			})
		})
	})
}

func TestSpeed(t *testing.T) {
	Convey("Given a scheduler", t, func() {
		rec := &recorder{}
		s := playback.New(rec, playback.WithSleep(rec.sleep))

		So(s.Speed(), ShouldEqual, 1.0)

		Convey("When the speed is set too low", func() {
			s.SetSpeed(0.01)
			So(s.Speed(), ShouldEqual, 0.1)
			s.SetSpeed(-5)
			So(s.Speed(), ShouldEqual, 0.1)
		})

		Convey("When events two seconds apart are replayed at double speed", func() {
			s.SetSpeed(2.0)
			l := buildLog(t,
				stamped{0, model.Move{X: 1, Y: 1}},
				stamped{2 * time.Second, model.Move{X: 2, Y: 2}},
			)
			_, err := s.Play(context.Background(), l)

			Convey("Then the wait should be one second", func() {
				So(err, ShouldBeNil)
				So(rec.delays, ShouldResemble, []time.Duration{time.Second})
			})
		})

		Convey("When events share a timestamp", func() {
			l := buildLog(t,
				stamped{0, model.KeyPress{Key: "a"}},
				stamped{0, model.KeyRelease{Key: "a"}},
			)
			res, err := s.Play(context.Background(), l)

			Convey("Then there should be no wait", func() {
				So(err, ShouldBeNil)
				So(res.Dispatched, ShouldEqual, 2)
				So(rec.delays, ShouldBeEmpty)
			})
		})

		Convey("When a run carries its own speed", func() {
			l := buildLog(t,
				stamped{0, model.Move{X: 1, Y: 1}},
				stamped{2 * time.Second, model.Move{X: 2, Y: 2}},
			)
			_, err := s.Play(context.Background(), l, playback.WithRunSpeed(2))

			Convey("Then it should pace that run and become the current speed", func() {
				So(err, ShouldBeNil)
				So(rec.delays, ShouldResemble, []time.Duration{time.Second})
				So(s.Speed(), ShouldEqual, 2.0)
			})
		})

		Convey("When the initial speed is an option", func() {
			other := playback.New(rec, playback.WithSpeed(0))
			So(other.Speed(), ShouldEqual, 0.1)
		})
	})
}

func TestStop(t *testing.T) {
	Convey("Given a scheduler and a three event log", t, func() {
		l := buildLog(t,
			stamped{0, model.Move{X: 1, Y: 1}},
			stamped{time.Second, model.Move{X: 2, Y: 2}},
			stamped{2 * time.Second, model.Move{X: 3, Y: 3}},
		)
		rec := &recorder{}
		s := playback.New(rec, playback.WithSleep(rec.sleep))

		Convey("When stop is requested before play", func() {
			s.Stop()
			res, err := s.Play(context.Background(), l)

			Convey("Then nothing should be dispatched", func() {
				So(err, ShouldBeNil)
				So(res.Dispatched, ShouldEqual, 0)
				So(res.Stopped, ShouldBeTrue)
				So(rec.actions, ShouldBeEmpty)
			})

			Convey("Then the request should be consumed by that run", func() {
				res, err := s.Play(context.Background(), l)
				So(err, ShouldBeNil)
				So(res.Dispatched, ShouldEqual, 3)
				So(res.Stopped, ShouldBeFalse)
			})
		})

		Convey("When stop is requested during a dispatch", func() {
			var s2 *playback.Scheduler
			s2 = playback.New(playback.InjectorFunc(func(ctx context.Context, a model.Action) error {
				rec.actions = append(rec.actions, a)
				s2.Stop()
				return nil
			}), playback.WithSleep(rec.sleep))

			res, err := s2.Play(context.Background(), l)

			Convey("Then the run should end before the next event", func() {
				So(err, ShouldBeNil)
				So(res.Dispatched, ShouldEqual, 1)
				So(res.Stopped, ShouldBeTrue)
				So(s2.IsPlaying(), ShouldBeFalse)
			})
		})
	})
}
