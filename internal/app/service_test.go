package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/mimic/internal/app"
	"github.com/okian/mimic/internal/capture"
	"github.com/okian/mimic/internal/domain/eventlog"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/internal/domain/predict"
	"github.com/okian/mimic/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func newTestService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	dir := t.TempDir()
	base := []service.Option{
		service.WithRecordingsDir(dir + "/recordings"),
		service.WithModelsDir(dir + "/models"),
		service.WithForest(10, 0, 1),
		service.WithPlaybackSleep(func(context.Context, time.Duration) error { return nil }),
	}
	return service.New(append(base, opts...)...)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should report sensible defaults before starting", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, false)
			So(stats["modelName"], ShouldEqual, "behavior_model")
			So(stats["recordingsDir"], ShouldEqual, "recorded_data")
			So(stats["queueSize"], ShouldEqual, 10_000)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithQueueSize(50),
			service.WithModelName("custom"),
			service.WithTestFraction(0.3),
			service.WithMinRecordings(1),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats(context.Background())
			So(stats["queueSize"], ShouldEqual, 50)
			So(stats["modelName"], ShouldEqual, "custom")
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := newTestService(t)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When operations run before Start", func() {
			_, listErr := svc.ListRecordings(ctx)
			_, trainErr := svc.Train(ctx)
			_, impErr := svc.FeatureImportance()

			Convey("Then they fail with ErrNotStarted", func() {
				So(errors.Is(listErr, service.ErrNotStarted), ShouldBeTrue)
				So(errors.Is(trainErr, service.ErrNotStarted), ShouldBeTrue)
				So(errors.Is(impErr, service.ErrNotStarted), ShouldBeTrue)
				So(svc.StopPlayback(), ShouldBeFalse)
			})
		})

		Convey("When starting the service", func() {
			err := svc.Start(ctx)
			defer svc.Stop()

			Convey("Then it should start successfully and untrained", func() {
				So(err, ShouldBeNil)
				So(svc.Start(ctx), ShouldBeNil)
				stats := svc.GetStats(ctx)
				So(stats["started"], ShouldEqual, true)
				So(stats["modelTrained"], ShouldEqual, false)
				So(stats["playing"], ShouldEqual, false)
				So(stats["recordings"], ShouldEqual, 0)
			})

			Convey("And stopping marks it stopped", func() {
				svc.Stop()
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			})
		})

		Convey("When a sensitive pattern does not compile", func() {
			bad := newTestService(t, service.WithSensitivity(true, []string{"("}))
			err := bad.Start(ctx)

			Convey("Then Start fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestService_RequestValidation(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := newTestService(t)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("A malformed session id is an invalid request", func() {
			_, err := svc.LoadRecording(ctx, "not-a-uuid")
			So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
		})

		Convey("An unknown session id is not found", func() {
			_, err := svc.LoadRecording(ctx, "0f8fad5b-d9cb-469f-a165-70867728950e")
			So(errors.Is(err, eventlog.ErrNotFound), ShouldBeTrue)
		})

		Convey("Unknown playback categories are rejected", func() {
			_, err := svc.Play(ctx, "0f8fad5b-d9cb-469f-a165-70867728950e", service.PlayRequest{Categories: []string{"teleport"}})
			So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
		})

		Convey("A negative playback start is rejected", func() {
			start := -1
			_, err := svc.Play(ctx, "0f8fad5b-d9cb-469f-a165-70867728950e", service.PlayRequest{Start: &start})
			So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
		})

		Convey("Training without recordings reports insufficient data", func() {
			_, err := svc.Train(ctx)
			So(errors.Is(err, service.ErrNotEnoughRecordings), ShouldBeTrue)
			So(errors.Is(err, predict.ErrInsufficientData), ShouldBeTrue)
		})

		Convey("Importance before training reports not trained", func() {
			_, err := svc.FeatureImportance()
			So(errors.Is(err, predict.ErrNotTrained), ShouldBeTrue)
		})

		Convey("Speed changes are clamped", func() {
			So(svc.SetSpeed(0.01), ShouldEqual, 0.1)
			So(svc.SetSpeed(2), ShouldEqual, 2.0)
		})

		Convey("Stopping an idle player reports nothing was playing", func() {
			So(svc.StopPlayback(), ShouldBeFalse)
		})
	})
}

func TestService_RecordSourceError(t *testing.T) {
	Convey("Given a source that fails after emitting events", t, func() {
		svc := newTestService(t)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		boom := errors.New("hook lost")
		synthetic := capture.NewSynthetic(capture.WithCount(4))
		src := capture.SourceFunc(func(ctx context.Context, h func(e model.Event)) error {
			if err := synthetic.OnEvent(ctx, h); err != nil {
				return err
			}
			return boom
		})

		res, err := svc.Record(ctx, src, eventlog.Metadata{})

		Convey("Then what was captured is still saved and the error surfaces", func() {
			So(errors.Is(err, boom), ShouldBeTrue)
			So(res.EventCount, ShouldEqual, 4)
			l, loadErr := svc.LoadRecording(ctx, res.SessionID)
			So(loadErr, ShouldBeNil)
			So(l.Len(), ShouldEqual, 4)
		})
	})
}
