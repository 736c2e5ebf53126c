package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/okian/mimic/internal/adapters/artifact"
	"github.com/okian/mimic/internal/adapters/catalog"
	"github.com/okian/mimic/internal/adapters/http/api"
	"github.com/okian/mimic/internal/adapters/http/swagger"
	service "github.com/okian/mimic/internal/app"
	"github.com/okian/mimic/internal/config"
	"github.com/okian/mimic/internal/domain/predict"
	"github.com/okian/mimic/pkg/logger"
)

// HTTP server timeout constants. Playback requests block until the replay
// finishes, so there is no write timeout.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	catalogDirPerm    = 0o750
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if cfg.LogJSON {
		if err := logger.Init(logger.WithJSON(true)); err != nil {
			os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
			os.Exit(1)
		}
	}
	log := logger.Get()
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "mimic exited with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := newArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}

	opts := serviceOptions(cfg, store, log)
	if cfg.CatalogPath != "" {
		cat, err := openCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		opts = append(opts, service.WithCatalog(cat))
	}

	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(svc),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// A running playback would hold its request open past the shutdown deadline.
	svc.StopPlayback()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newMux registers the business API and its docs.
func newMux(svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc, svc).Register(mux)
	return mux
}

// newArtifactStore picks the model artifact backend.
func newArtifactStore(ctx context.Context, cfg *config.Config) (predict.ArtifactStore, error) {
	switch cfg.ArtifactBackend {
	case "s3":
		store, err := artifact.NewS3Store(ctx, cfg.S3Bucket, artifact.S3Config{
			Region:       cfg.S3Region,
			Prefix:       cfg.S3Prefix,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 artifact store: %w", err)
		}
		return store, nil
	default:
		store, err := artifact.NewLocalStore(cfg.ModelsDir)
		if err != nil {
			return nil, fmt.Errorf("local artifact store: %w", err)
		}
		return store, nil
	}
}

func openCatalog(path string) (*catalog.SQLiteCatalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), catalogDirPerm); err != nil {
		return nil, fmt.Errorf("catalog dir: %w", err)
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return cat, nil
}

func serviceOptions(cfg *config.Config, store predict.ArtifactStore, log logger.Logger) []service.Option {
	return []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithRecordingsDir(cfg.RecordingsDir),
		service.WithModelsDir(cfg.ModelsDir),
		service.WithArtifactStore(store),
		service.WithQueueSize(cfg.QueueSize),
		service.WithModelName(cfg.ModelName),
		service.WithTestFraction(cfg.TestFraction),
		service.WithMinRecordings(cfg.MinRecordings),
		service.WithForest(cfg.ForestTrees, cfg.ForestMaxDepth, cfg.ForestMinLeaf),
		service.WithSeed(cfg.RandomSeed),
		service.WithPlaybackSpeed(cfg.PlaybackSpeed),
		service.WithSensitivity(cfg.AnonymizeKeys, cfg.SensitivePatterns),
	}
}
