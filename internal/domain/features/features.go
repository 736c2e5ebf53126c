// Package features turns recorded events into fixed-width numeric vectors for
// the next-event classifier.
package features

import (
	"github.com/okian/mimic/internal/domain/eventlog"
	"github.com/okian/mimic/internal/domain/model"
)

// Width is the number of features per event.
const Width = 5

// Feature positions within a Vector.
const (
	FeatureCategory = iota
	FeatureX
	FeatureY
	FeatureDelay
	FeatureApp
)

// Names labels each feature position, in order.
var Names = [Width]string{"interaction_type", "position_x", "position_y", "time_delta", "active_app"}

// Vector is the encoding of one event.
type Vector [Width]float64

// Encode maps events to vectors:
//
//	[category index or -1, x or 0, y or 0, seconds since previous event, app index]
//
// The delay is 0 for the first event and whenever either timestamp is zero.
// App indices are assigned in first-appearance order within this call only, so
// the same app may get different indices across calls. Events without a
// context count as app "".
func Encode(events []model.Event) []Vector {
	out := make([]Vector, len(events))
	apps := make(map[string]int)

	for i, e := range events {
		var v Vector
		v[FeatureCategory] = float64(e.Category.Index())
		if x, ok := e.Float(model.KeyX); ok {
			v[FeatureX] = x
		}
		if y, ok := e.Float(model.KeyY); ok {
			v[FeatureY] = y
		}
		if i > 0 {
			prev := events[i-1].Timestamp
			if !prev.IsZero() && !e.Timestamp.IsZero() {
				v[FeatureDelay] = e.Timestamp.Sub(prev).Seconds()
			}
		}
		app := e.ActiveApp()
		idx, ok := apps[app]
		if !ok {
			idx = len(apps)
			apps[app] = idx
		}
		v[FeatureApp] = float64(idx)
		out[i] = v
	}
	return out
}

// BuildTrainingSet pairs each event with the category of the event after it.
// Logs with fewer than two events contribute nothing and pairs never cross
// log boundaries. Output keeps log order then event order.
func BuildTrainingSet(logs []*eventlog.Log) ([]Vector, []model.Category) {
	var (
		vectors []Vector
		labels  []model.Category
	)
	for _, l := range logs {
		if l == nil || l.Len() < 2 {
			continue
		}
		events := l.Events()
		vectors = append(vectors, Encode(events[:len(events)-1])...)
		for _, e := range events[1:] {
			labels = append(labels, e.Category)
		}
	}
	return vectors, labels
}
