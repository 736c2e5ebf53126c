// Package predict trains and serves the next-event classifier.
//
// A Model is UNTRAINED until Train succeeds or Load reads a valid artifact.
// The fitted state is an immutable snapshot swapped atomically, so
// predictions never observe a half-trained model.
package predict

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/okian/mimic/internal/domain/eventlog"
	"github.com/okian/mimic/internal/domain/features"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/pkg/logger"
	"github.com/okian/mimic/pkg/metrics"
)

// Defaults.
const (
	DefaultTestFraction = 0.2
	DefaultTrees        = 100
	DefaultSeed         = 42
	// ArtifactExt is appended to model names to form the artifact key.
	ArtifactExt = ".model"
)

// ArtifactStore persists opaque model artifacts by name. Get must return an
// error matching fs.ErrNotExist for missing names.
type ArtifactStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Location(name string) string
}

// Metrics reports a training run.
type Metrics struct {
	TrainAccuracy float64 `json:"train_accuracy"`
	TestAccuracy  float64 `json:"test_accuracy"`
	TrainCount    int     `json:"training_samples"`
	TestCount     int     `json:"test_samples"`
}

// Prediction is the most likely next category and its probability.
type Prediction struct {
	Category   model.Category `json:"type"`
	Confidence float64        `json:"confidence"`
}

type snapshot struct {
	classes []model.Category
	forest  *forest
	metrics Metrics
}

// Model is the next-event classifier.
type Model struct {
	state  atomic.Pointer[snapshot]
	store  ArtifactStore
	cfg    forestConfig
	logger logger.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithStore sets the artifact store used by Save and Load.
func WithStore(s ArtifactStore) Option {
	return func(m *Model) { m.store = s }
}

// WithTrees sets the forest size.
func WithTrees(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.cfg.Trees = n
		}
	}
}

// WithMaxDepth limits tree depth; 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(m *Model) {
		if d >= 0 {
			m.cfg.MaxDepth = d
		}
	}
}

// WithMinLeaf sets the minimum number of samples per leaf.
func WithMinLeaf(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.cfg.MinLeaf = n
		}
	}
}

// WithSeed sets the seed for the train/test split and bagging.
func WithSeed(seed int64) Option {
	return func(m *Model) { m.cfg.Seed = seed }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// New returns an untrained model.
func New(opts ...Option) *Model {
	m := &Model{
		cfg:    forestConfig{Trees: DefaultTrees, MinLeaf: 1, Seed: DefaultSeed},
		logger: logger.Get().Named("predict"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsTrained reports whether the model can predict.
func (m *Model) IsTrained() bool { return m.state.Load() != nil }

// Classes returns the class mapping of the current model.
func (m *Model) Classes() []model.Category {
	s := m.state.Load()
	if s == nil {
		return nil
	}
	return append([]model.Category(nil), s.classes...)
}

// LastMetrics returns the metrics stored with the current model.
func (m *Model) LastMetrics() (Metrics, error) {
	s := m.state.Load()
	if s == nil {
		return Metrics{}, ErrNotTrained
	}
	return s.metrics, nil
}

// Train fits the classifier on every consecutive event pair in logs.
// testFraction outside (0, 1) falls back to DefaultTestFraction. The split is
// a fixed-seed shuffle with ceil(f*n) test examples, always leaving at least
// one training example. On failure the previous state is kept.
func (m *Model) Train(ctx context.Context, logs []*eventlog.Log, testFraction float64) (Metrics, error) {
	start := time.Now()

	xs, labels := features.BuildTrainingSet(logs)
	if len(xs) == 0 {
		metrics.RecordTrainingFailure()
		return Metrics{}, ErrInsufficientData
	}
	if testFraction <= 0 || testFraction >= 1 {
		testFraction = DefaultTestFraction
	}

	classes, ys := encodeLabels(labels)
	trainIdx, testIdx := splitIndices(len(xs), testFraction, m.cfg.Seed)

	trainX, trainY := subset(xs, ys, trainIdx)
	testX, testY := subset(xs, ys, testIdx)

	f, err := fitForest(ctx, trainX, trainY, len(classes), m.cfg)
	if err != nil {
		metrics.RecordTrainingFailure()
		return Metrics{}, fmt.Errorf("train: %w", err)
	}

	res := Metrics{
		TrainAccuracy: accuracy(f, trainX, trainY),
		TestAccuracy:  accuracy(f, testX, testY),
		TrainCount:    len(trainX),
		TestCount:     len(testX),
	}
	m.state.Store(&snapshot{classes: classes, forest: f, metrics: res})

	elapsed := time.Since(start)
	metrics.RecordTraining(elapsed, res.TrainCount, res.TestCount, res.TrainAccuracy, res.TestAccuracy)
	m.logger.Info(ctx, "model trained",
		logger.Int("train_samples", res.TrainCount),
		logger.Int("test_samples", res.TestCount),
		logger.Float64("train_accuracy", res.TrainAccuracy),
		logger.Float64("test_accuracy", res.TestAccuracy),
		logger.Int("classes", len(classes)),
		logger.Duration("took", elapsed),
	)
	return res, nil
}

// encodeLabels maps categories to dense class ids ordered by category index.
func encodeLabels(labels []model.Category) ([]model.Category, []int) {
	seen := make(map[model.Category]bool)
	var classes []model.Category
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Index() < classes[j].Index() })

	ids := make(map[model.Category]int, len(classes))
	for i, c := range classes {
		ids[c] = i
	}
	ys := make([]int, len(labels))
	for i, l := range labels {
		ys[i] = ids[l]
	}
	return classes, ys
}

func splitIndices(n int, testFraction float64, seed int64) ([]int, []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n) //nolint:gosec // reproducible split
	nTest := int(math.Ceil(testFraction*float64(n) - 1e-9))
	if nTest > n-1 {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	return perm[nTest:], perm[:nTest]
}

func subset(xs []features.Vector, ys []int, idx []int) ([]features.Vector, []int) {
	outX := make([]features.Vector, len(idx))
	outY := make([]int, len(idx))
	for i, j := range idx {
		outX[i], outY[i] = xs[j], ys[j]
	}
	return outX, outY
}

// accuracy is 0 for an empty set.
func accuracy(f *forest, xs []features.Vector, ys []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	hits := 0
	for i, x := range xs {
		if c, _ := f.predict(x); c == ys[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(xs))
}

// PredictNext predicts the category following the last of events. Only the
// last event is encoded.
func (m *Model) PredictNext(events []model.Event) (Prediction, error) {
	s := m.state.Load()
	if s == nil {
		return Prediction{}, ErrNotTrained
	}
	if len(events) == 0 {
		return Prediction{Category: model.Unknown}, nil
	}
	x := features.Encode(events[len(events)-1:])[0]
	c, p := s.forest.predict(x)
	metrics.RecordPrediction(string(s.classes[c]))
	return Prediction{Category: s.classes[c], Confidence: p}, nil
}

// FeatureImportance returns the normalised mean decrease in impurity per
// feature. A forest that never split reports all zeros.
func (m *Model) FeatureImportance() (map[string]float64, error) {
	s := m.state.Load()
	if s == nil {
		return nil, ErrNotTrained
	}
	out := make(map[string]float64, features.Width)
	for i, name := range features.Names {
		out[name] = s.forest.Importance[i]
	}
	return out, nil
}

// Save persists the current model as <name>.model.
func (m *Model) Save(ctx context.Context, name string) (string, error) {
	s := m.state.Load()
	if s == nil {
		return "", ErrNotTrained
	}
	if m.store == nil {
		return "", ErrNoStore
	}
	data, err := encodeArtifact(s)
	if err != nil {
		metrics.RecordModelArtifact("save", "error")
		return "", err
	}
	key := name + ArtifactExt
	if err := m.store.Put(ctx, key, data); err != nil {
		metrics.RecordModelArtifact("save", "error")
		return "", fmt.Errorf("save model: %w", err)
	}
	metrics.RecordModelArtifact("save", "ok")
	loc := m.store.Location(key)
	m.logger.Info(ctx, "model saved", logger.String("location", loc), logger.Int("bytes", len(data)))
	return loc, nil
}

// Load replaces the current model with <name>.model. A missing artifact
// returns *ArtifactNotFoundError and leaves the model untouched; an invalid
// one returns ErrInvalidArtifact and resets the model to untrained.
func (m *Model) Load(ctx context.Context, name string) error {
	if m.store == nil {
		return ErrNoStore
	}
	key := name + ArtifactExt
	data, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.RecordModelArtifact("load", "not_found")
			return &ArtifactNotFoundError{Path: m.store.Location(key)}
		}
		metrics.RecordModelArtifact("load", "error")
		return fmt.Errorf("load model: %w", err)
	}

	s, err := decodeArtifact(data)
	if err != nil {
		m.state.Store(nil)
		metrics.RecordModelArtifact("load", "invalid")
		m.logger.Warn(ctx, "discarded invalid model artifact", logger.String("location", m.store.Location(key)), logger.Error(err))
		return err
	}
	m.state.Store(s)
	metrics.RecordModelArtifact("load", "ok")
	return nil
}
