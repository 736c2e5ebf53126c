package playback_test

import (
	"testing"
	"time"

	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/internal/domain/playback"
	"github.com/smartystreets/goconvey/convey"
)

func TestPreview(t *testing.T) {
	convey.Convey("Given a two event log", t, func() {
		l := buildLog(t,
			stamped{0, model.Move{X: 100, Y: 200}},
			stamped{time.Second, model.Click{X: 100, Y: 200, Button: "left", Pressed: true}},
		)

		convey.Convey("When previewing more events than exist", func() {
			sums := playback.Preview(l, 5)

			convey.Convey("Then every event should be summarised", func() {
				convey.So(len(sums), convey.ShouldEqual, 2)
				convey.So(sums[0].Description, convey.ShouldEqual, "Move to (100, 200)")
				convey.So(sums[1].Description, convey.ShouldEqual, "Click left at (100, 200)")
				convey.So(sums[1].Index, convey.ShouldEqual, 1)
				convey.So(sums[1].Category, convey.ShouldEqual, model.PointerClick)
				convey.So(sums[1].String(), convey.ShouldEqual, "1. [2024-04-01T10:00:01Z] Click left at (100, 200)")
			})
		})

		convey.Convey("When previewing with a small or zero limit", func() {
			convey.So(len(playback.Preview(l, 1)), convey.ShouldEqual, 1)
			convey.So(playback.Preview(l, 0), convey.ShouldBeEmpty)
			convey.So(playback.Preview(nil, 3), convey.ShouldBeEmpty)
		})
	})

	convey.Convey("Given every category", t, func() {
		cases := map[string]model.Action{
			"Scroll by -3":          model.Scroll{X: 1, Y: 1, DY: -3},
			"Key Press: a":          model.KeyPress{Key: "a"},
			"Key Release: enter":    model.KeyRelease{Key: "enter"},
			"Switch to terminal":    model.Switch{App: "terminal"},
			"Move to (1.5, 2)":      model.Move{X: 1.5, Y: 2},
			"Click right at (0, 0)": model.Click{Button: "right"},
		}
		for want, a := range cases {
			convey.So(playback.Describe(model.NewEvent(t0, a, nil)), convey.ShouldEqual, want)
		}
		convey.So(playback.Describe(model.Event{Category: model.PointerMove}), convey.ShouldEqual, "Move to (?, ?)")
	})
}
