package service

import (
	"github.com/okian/mimic/internal/domain/playback"
	"github.com/okian/mimic/internal/domain/predict"
	"github.com/okian/mimic/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRecordingsDir sets where recordings are persisted.
func WithRecordingsDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.recordingsDir = dir
		}
	}
}

// WithModelsDir sets the directory of the default local artifact store.
// It has no effect when WithArtifactStore is used.
func WithModelsDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.modelsDir = dir
		}
	}
}

// WithArtifactStore sets where trained models are saved.
func WithArtifactStore(store predict.ArtifactStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCatalog sets the recording catalog. The service closes it on Stop.
func WithCatalog(c Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithInjector sets the playback injector (a logging dry run by default).
func WithInjector(inj playback.Injector) Option {
	return func(s *Service) {
		if inj != nil {
			s.injector = inj
		}
	}
}

// WithPlaybackSleep replaces the playback delay implementation.
func WithPlaybackSleep(fn playback.SleepFunc) Option {
	return func(s *Service) { s.sleep = fn }
}

// WithQueueSize sets the capacity of the capture queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithModelName sets the artifact name used by Train, LoadModel and Predict.
func WithModelName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.modelName = name
		}
	}
}

// WithTestFraction sets the held-out share of training examples.
func WithTestFraction(f float64) Option {
	return func(s *Service) {
		if f > 0 && f < 1 {
			s.testFraction = f
		}
	}
}

// WithMinRecordings sets how many recordings Train requires.
func WithMinRecordings(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.minRecordings = n
		}
	}
}

// WithForest sets the classifier's tree count, depth limit and leaf size.
func WithForest(trees, maxDepth, minLeaf int) Option {
	return func(s *Service) {
		if trees > 0 {
			s.trees = trees
		}
		if maxDepth >= 0 {
			s.maxDepth = maxDepth
		}
		if minLeaf > 0 {
			s.minLeaf = minLeaf
		}
	}
}

// WithSeed sets the training seed.
func WithSeed(seed int64) Option {
	return func(s *Service) { s.seed = seed }
}

// WithPlaybackSpeed sets the initial playback speed.
func WithPlaybackSpeed(speed float64) Option {
	return func(s *Service) {
		if speed > 0 {
			s.speed = speed
		}
	}
}

// WithSensitivity configures key masking and extra sensitive title patterns.
func WithSensitivity(anonymize bool, patterns []string) Option {
	return func(s *Service) {
		s.anonymize = anonymize
		s.patterns = patterns
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
