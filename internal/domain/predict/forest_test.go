package predict

import (
	"context"
	"testing"

	"github.com/okian/mimic/internal/domain/features"
	. "github.com/smartystreets/goconvey/convey"
)

func TestForest(t *testing.T) {
	Convey("Given a dataset separable on a single feature", t, func() {
		var xs []features.Vector
		var ys []int
		for i := 0; i < 40; i++ {
			v := features.Vector{0, float64(i), 5, 1, 0}
			y := 0
			if i >= 20 {
				y = 1
			}
			xs = append(xs, v)
			ys = append(ys, y)
		}

		Convey("When a forest is fitted", func() {
			f, err := fitForest(context.Background(), xs, ys, 2, forestConfig{Trees: 25, MinLeaf: 1, Seed: 42})
			So(err, ShouldBeNil)

			Convey("Then far points should be classified correctly", func() {
				c, p := f.predict(features.Vector{0, 2, 5, 1, 0})
				So(c, ShouldEqual, 0)
				So(p, ShouldBeGreaterThan, 0.5)
				c, _ = f.predict(features.Vector{0, 37, 5, 1, 0})
				So(c, ShouldEqual, 1)
			})

			Convey("Then all importance should sit on the varying feature", func() {
				So(f.Importance[features.FeatureX], ShouldAlmostEqual, 1.0, 1e-9)
				So(f.Importance[features.FeatureCategory], ShouldEqual, 0.0)
			})

			Convey("Then probabilities should sum to one", func() {
				var sum float64
				for _, p := range f.proba(features.Vector{0, 19.5, 5, 1, 0}) {
					sum += p
				}
				So(sum, ShouldAlmostEqual, 1.0, 1e-9)
			})
		})

		Convey("When depth is limited to one", func() {
			f, err := fitForest(context.Background(), xs, ys, 2, forestConfig{Trees: 3, MaxDepth: 1, MinLeaf: 1, Seed: 7})
			So(err, ShouldBeNil)

			Convey("Then every tree should be a single split or a leaf", func() {
				for _, tr := range f.Trees {
					So(len(tr.Nodes), ShouldBeLessThanOrEqualTo, 3)
				}
			})
		})
	})

	Convey("Given gini impurity", t, func() {
		So(gini([]float64{5, 5}, 10), ShouldAlmostEqual, 0.5, 1e-12)
		So(gini([]float64{10, 0}, 10), ShouldEqual, 0.0)
		So(gini(nil, 0), ShouldEqual, 0.0)
	})
}

func TestSplitIndices(t *testing.T) {
	Convey("Given the fixed-seed split", t, func() {
		Convey("Then fifteen examples at 0.2 should split 12/3", func() {
			train, test := splitIndices(15, 0.2, 42)
			So(len(train), ShouldEqual, 12)
			So(len(test), ShouldEqual, 3)
		})

		Convey("Then at least one training example should remain", func() {
			train, test := splitIndices(2, 0.9, 42)
			So(len(train), ShouldEqual, 1)
			So(len(test), ShouldEqual, 1)

			train, test = splitIndices(1, 0.5, 42)
			So(len(train), ShouldEqual, 1)
			So(len(test), ShouldEqual, 0)
		})

		Convey("Then the partition should cover every index once", func() {
			train, test := splitIndices(10, 0.3, 42)
			seen := map[int]bool{}
			for _, i := range append(train, test...) {
				So(seen[i], ShouldBeFalse)
				seen[i] = true
			}
			So(len(seen), ShouldEqual, 10)
		})
	})
}
