// Package seed generates synthetic recordings and exercises a running
// mimic service with them.
package seed

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	service "github.com/okian/mimic/internal/app"
	"github.com/okian/mimic/internal/capture"
	"github.com/okian/mimic/internal/domain/eventlog"
	"github.com/okian/mimic/pkg/logger"
)

// Run records cfg.Sessions synthetic sessions into cfg.RecordingsDir and,
// when cfg.BaseURL is set, trains the remote model and asks it for a
// prediction on the last session.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}

	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("seed")
	log.Info(ctx, "starting mimic seed",
		logger.String("recordingsDir", cfg.RecordingsDir),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("events", cfg.Events),
		logger.String("baseURL", cfg.BaseURL),
	)

	if err := record(ctx, cfg, stats, log); err != nil {
		return nil, fmt.Errorf("recording failed: %w", err)
	}

	if cfg.BaseURL != "" {
		if err := exercise(ctx, cfg, stats, log); err != nil {
			return nil, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "seed completed",
		logger.Int("sessions", len(stats.Sessions)),
		logger.Int("events", stats.Events),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func applyDefaults(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.RecordingsDir) == "" {
		return fmt.Errorf("%w: recordings dir must not be empty", ErrInvalidConfig)
	}
	if cfg.Sessions <= 0 {
		cfg.Sessions = DefaultSessions
	}
	if cfg.Events <= 0 {
		cfg.Events = DefaultEvents
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = DefaultContextSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return nil
}

// record drives a local service so recordings go through the same queue,
// gate and writer as a live capture.
func record(ctx context.Context, cfg *Config, stats *Stats, log logger.Logger) error {
	opts := []service.Option{
		service.WithRecordingsDir(cfg.RecordingsDir),
		service.WithQueueSize(cfg.Events),
		service.WithLogger(log.Named("service")),
	}
	if cfg.ModelsDir != "" {
		opts = append(opts, service.WithModelsDir(cfg.ModelsDir))
	}
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	base := time.Now().UTC().Add(-time.Duration(cfg.Sessions) * sessionSpacing)
	meta := eventlog.Metadata{
		ScreenResolution: eventlog.Resolution{Width: 1920, Height: 1080},
		OSInfo:           eventlog.OSInfo{Platform: runtime.GOOS, Version: runtime.Version()},
		DeviceName:       "synthetic",
		UserID:           "seed",
	}

	for i := 0; i < cfg.Sessions; i++ {
		src := capture.NewSynthetic(
			capture.WithCount(cfg.Events),
			capture.WithInterval(cfg.Interval),
			capture.WithSeed(cfg.Seed+int64(i)),
			capture.WithStart(base.Add(time.Duration(i)*sessionSpacing)),
		)
		res, err := svc.Record(ctx, src, meta)
		if err != nil {
			return fmt.Errorf("session %d: %w", i, err)
		}
		stats.Sessions = append(stats.Sessions, res.SessionID)
		stats.Events += res.EventCount
		stats.Dropped += res.Dropped
		stats.Rejected += res.Rejected
		if cfg.Verbose {
			log.Info(ctx, "recorded session",
				logger.String("session_id", res.SessionID),
				logger.String("path", res.Path),
				logger.Int("interactions", res.EventCount),
			)
		}
	}
	return nil
}

func exercise(ctx context.Context, cfg *Config, stats *Stats, log logger.Logger) error {
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if err := checkServiceHealth(ctx, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	trained, err := train(ctx, client)
	if err != nil {
		return err
	}
	stats.Train = trained
	log.Info(ctx, "model trained",
		logger.String("location", trained.Location),
		logger.Int("recordings", trained.Recordings),
		logger.Float64("trainAccuracy", trained.Metrics.TrainAccuracy),
		logger.Float64("testAccuracy", trained.Metrics.TestAccuracy),
	)

	if len(stats.Sessions) == 0 {
		return nil
	}
	last := stats.Sessions[len(stats.Sessions)-1]
	pred, err := predictNext(ctx, client, last, cfg.ContextSize)
	if err != nil {
		return err
	}
	stats.Prediction = pred
	log.Info(ctx, "predicted next event",
		logger.String("session_id", last),
		logger.String("type", string(pred.Category)),
		logger.Float64("confidence", pred.Confidence),
	)
	return nil
}
