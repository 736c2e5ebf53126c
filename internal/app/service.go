// Package service wires capture, persistence, playback and prediction into
// the operations exposed by the HTTP API and the binary.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/mimic/internal/adapters/artifact"
	"github.com/okian/mimic/internal/adapters/catalog"
	eventqueue "github.com/okian/mimic/internal/adapters/mq/queue"
	recorder "github.com/okian/mimic/internal/adapters/mq/worker"
	"github.com/okian/mimic/internal/capture"
	"github.com/okian/mimic/internal/domain/eventlog"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/internal/domain/playback"
	"github.com/okian/mimic/internal/domain/predict"
	"github.com/okian/mimic/pkg/logger"
	"github.com/okian/mimic/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultRecordingsDir = "recorded_data"
	defaultModelsDir     = "models"
	defaultModelName     = "behavior_model"
	defaultQueueSize     = 10_000
	defaultTestFraction  = 0.2
	defaultMinRecordings = 3
	defaultContextSize   = 5
)

// Catalog indexes persisted recordings by session id.
type Catalog interface {
	Register(ctx context.Context, r catalog.Record) error
	Lookup(ctx context.Context, sessionID string) (catalog.Record, error)
	List(ctx context.Context, limit int) ([]catalog.Record, error)
	Remove(ctx context.Context, sessionID string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Recording describes a persisted session.
type Recording struct {
	SessionID  string    `json:"session_id"`
	Path       string    `json:"path"`
	Start      time.Time `json:"start_time"`
	End        time.Time `json:"end_time"`
	EventCount int       `json:"interactions"`
}

// RecordResult reports a finished capture.
type RecordResult struct {
	Recording
	Statistics eventlog.Statistics `json:"statistics"`
	Dropped    int64               `json:"dropped"`
	Rejected   int64               `json:"rejected"`
}

// PlayRequest selects what to replay. Nil bounds mean the whole selection.
type PlayRequest struct {
	Speed      float64  `json:"speed,omitempty"`
	Start      *int     `json:"start,omitempty"`
	End        *int     `json:"end,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// TrainResult reports a training run.
type TrainResult struct {
	Metrics    predict.Metrics `json:"metrics"`
	Location   string          `json:"model_path"`
	Recordings int             `json:"recordings"`
	Skipped    int             `json:"skipped"`
}

// PredictResult is a prediction plus how much history produced it.
type PredictResult struct {
	predict.Prediction
	ContextSize int `json:"context_size"`
}

// Service implements the API dependencies for mimic.
type Service struct {
	mu sync.RWMutex

	// Core components
	recordings *eventlog.Dir
	catalog    Catalog
	store      predict.ArtifactStore
	model      *predict.Model
	player     *playback.Scheduler
	injector   playback.Injector
	sleep      playback.SleepFunc
	gate       *capture.Gate

	// Configuration
	recordingsDir string
	modelsDir     string
	modelName     string
	queueSize     int
	testFraction  float64
	minRecordings int
	trees         int
	maxDepth      int
	minLeaf       int
	seed          int64
	speed         float64
	anonymize     bool
	patterns      []string

	// State
	started   bool
	capturing atomic.Int64

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		recordingsDir: defaultRecordingsDir,
		modelsDir:     defaultModelsDir,
		modelName:     defaultModelName,
		queueSize:     defaultQueueSize,
		testFraction:  defaultTestFraction,
		minRecordings: defaultMinRecordings,
		trees:         predict.DefaultTrees,
		minLeaf:       1,
		seed:          predict.DefaultSeed,
		speed:         1.0,
		anonymize:     true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components. Calling it twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	gate, err := capture.NewGate(s.anonymize, s.patterns)
	if err != nil {
		return fmt.Errorf("sensitivity gate: %w", err)
	}
	s.gate = gate

	if s.store == nil {
		local, err := artifact.NewLocalStore(s.modelsDir)
		if err != nil {
			return fmt.Errorf("artifact store: %w", err)
		}
		s.store = local
	}
	if s.injector == nil {
		s.injector = playback.NewLogInjector(logger.Get().Named("injector"))
	}

	s.recordings = eventlog.NewDir(s.recordingsDir)
	s.model = predict.New(
		predict.WithStore(s.store),
		predict.WithTrees(s.trees),
		predict.WithMaxDepth(s.maxDepth),
		predict.WithMinLeaf(s.minLeaf),
		predict.WithSeed(s.seed),
	)
	s.player = playback.New(s.injector, playback.WithSpeed(s.speed), playback.WithSleep(s.sleep))

	// A previously trained model is picked up if present.
	switch err := s.model.Load(ctx, s.modelName); {
	case err == nil:
		s.logger.Info(ctx, "loaded model", logger.String("location", s.store.Location(s.modelName+predict.ArtifactExt)))
	case errors.Is(err, predict.ErrArtifactNotFound):
		s.logger.Debug(ctx, "no saved model yet", logger.String("name", s.modelName))
	default:
		s.logger.Warn(ctx, "ignoring unusable model artifact", logger.Error(err))
	}

	s.started = true
	s.logger.Info(ctx, "mimic service started",
		logger.String("recordingsDir", s.recordingsDir),
		logger.String("modelName", s.modelName),
		logger.Int("queueSize", s.queueSize),
		logger.Float64("speed", s.speed),
		logger.Bool("catalog", s.catalog != nil),
	)
	return nil
}

// Stop halts playback and releases the catalog.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping mimic service...")

	s.player.StopIfPlaying()
	if s.catalog != nil {
		if err := s.catalog.Close(); err != nil {
			s.logger.Warn(ctx, "closing catalog", logger.Error(err))
		}
		s.catalog = nil
	}

	s.started = false
	s.logger.Info(ctx, "mimic service stopped")
}

// catalogue returns the catalog, or nil when none is configured or the
// service has stopped.
func (s *Service) catalogue() Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Record captures events from src until it returns or ctx is cancelled,
// then seals and persists the session. Cancellation is the normal way to end
// a live capture and is not reported as an error. Events already queued when
// the source stops are still written.
func (s *Service) Record(ctx context.Context, src capture.Source, meta eventlog.Metadata) (RecordResult, error) {
	if err := s.ready(); err != nil {
		return RecordResult{}, err
	}
	s.capturing.Add(1)
	defer s.capturing.Add(-1)

	session := eventlog.NewSession(meta)
	q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	drainCtx := context.WithoutCancel(ctx)
	rec := recorder.NewRecorder(q, session,
		recorder.WithGate(s.gate),
		recorder.WithName("recorder-"+session.ID().String()[:8]),
	)
	rec.Start(drainCtx)

	s.logger.Info(ctx, "recording started", logger.String("session_id", session.ID().String()))

	srcErr := src.OnEvent(ctx, func(e model.Event) {
		if err := q.Enqueue(drainCtx, e); err != nil {
			s.logger.Debug(ctx, "dropped captured event", logger.String("type", string(e.Category)), logger.Error(err))
		}
	})
	if errors.Is(srcErr, context.Canceled) || errors.Is(srcErr, context.DeadlineExceeded) {
		srcErr = nil
	}

	_ = q.Close()
	if err := rec.Wait(drainCtx); err != nil {
		return RecordResult{}, err
	}

	log := session.Seal()
	path, err := s.recordings.Save(log)
	if err != nil {
		metrics.RecordErrorByComponent("service", "save_recording")
		return RecordResult{}, err
	}
	s.register(ctx, log, path)

	counts := rec.Counts()
	res := RecordResult{
		Recording:  recordingOf(log, path),
		Statistics: log.Statistics(),
		Dropped:    q.Dropped(),
		Rejected:   counts.Rejected,
	}
	s.logger.Info(ctx, "recording saved",
		logger.String("session_id", res.SessionID),
		logger.String("path", path),
		logger.Int("interactions", res.EventCount),
		logger.Any("dropped", res.Dropped),
		logger.Any("rejected", res.Rejected),
	)

	if srcErr != nil {
		return res, fmt.Errorf("capture source: %w", srcErr)
	}
	return res, nil
}

func recordingOf(l *eventlog.Log, path string) Recording {
	return Recording{
		SessionID:  l.ID().String(),
		Path:       path,
		Start:      l.Start(),
		End:        l.End(),
		EventCount: l.Len(),
	}
}

func (s *Service) register(ctx context.Context, l *eventlog.Log, path string) {
	cat := s.catalogue()
	if cat == nil {
		return
	}
	err := cat.Register(ctx, catalog.Record{
		SessionID:  l.ID().String(),
		Path:       path,
		Start:      l.Start(),
		End:        l.End(),
		EventCount: l.Len(),
		DeviceName: l.Metadata().DeviceName,
	})
	if err != nil {
		metrics.RecordErrorByComponent("service", "catalog_register")
		s.logger.Warn(ctx, "catalog register failed", logger.String("path", path), logger.Error(err))
	}
}

// ListRecordings returns the persisted recordings, newest first. Files the
// catalog does not know yet are loaded once and registered; unreadable files
// are logged and left out. Catalog entries whose file is gone are removed.
func (s *Service) ListRecordings(ctx context.Context) ([]Recording, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	persisted, err := s.recordings.List()
	if err != nil {
		return nil, err
	}

	cat := s.catalogue()
	if cat != nil {
		s.prune(ctx, cat, persisted)
	}

	out := make([]Recording, 0, len(persisted))
	for _, p := range persisted {
		if cat != nil {
			if r, err := cat.Lookup(ctx, p.SessionID.String()); err == nil && r.Path == p.Path {
				out = append(out, Recording{
					SessionID:  r.SessionID,
					Path:       r.Path,
					Start:      r.Start,
					End:        r.End,
					EventCount: r.EventCount,
				})
				continue
			}
		}
		l, err := s.recordings.Load(p.Path)
		if err != nil {
			s.logger.Warn(ctx, "skipping unreadable recording", logger.String("path", p.Path), logger.Error(err))
			continue
		}
		s.register(ctx, l, p.Path)
		out = append(out, recordingOf(l, p.Path))
	}
	return out, nil
}

func (s *Service) prune(ctx context.Context, cat Catalog, persisted []eventlog.Persisted) {
	records, err := cat.List(ctx, 0)
	if err != nil {
		s.logger.Warn(ctx, "listing catalog", logger.Error(err))
		return
	}
	onDisk := make(map[string]bool, len(persisted))
	for _, p := range persisted {
		onDisk[p.SessionID.String()] = true
	}
	for _, r := range records {
		if onDisk[r.SessionID] {
			continue
		}
		if err := cat.Remove(ctx, r.SessionID); err != nil {
			metrics.RecordErrorByComponent("service", "catalog_remove")
			s.logger.Warn(ctx, "catalog remove failed", logger.String("session_id", r.SessionID), logger.Error(err))
			continue
		}
		s.logger.Debug(ctx, "removed stale catalog entry", logger.String("session_id", r.SessionID))
	}
}

// LoadRecording resolves a session id through the catalog, falling back to
// the recordings directory.
func (s *Service) LoadRecording(ctx context.Context, sessionID string) (*eventlog.Log, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: session id %q: %v", ErrInvalidRequest, sessionID, err)
	}

	if cat := s.catalogue(); cat != nil {
		if r, err := cat.Lookup(ctx, id.String()); err == nil {
			l, err := s.recordings.Load(r.Path)
			if err == nil {
				return l, nil
			}
			if !errors.Is(err, eventlog.ErrNotFound) {
				return nil, err
			}
			s.logger.Debug(ctx, "catalogued recording moved", logger.String("path", r.Path))
		}
	}

	p, err := s.recordings.Find(id)
	if err != nil {
		return nil, err
	}
	l, err := s.recordings.Load(p.Path)
	if err != nil {
		return nil, err
	}
	s.register(ctx, l, p.Path)
	return l, nil
}

// Preview summarises the first limit interactions of a recording.
func (s *Service) Preview(ctx context.Context, sessionID string, limit int) ([]playback.Summary, error) {
	l, err := s.LoadRecording(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return playback.Preview(l, limit), nil
}

// Play replays a recording and blocks until it finishes, is stopped, or ctx
// is cancelled. A second concurrent call fails with playback.ErrAlreadyPlaying.
func (s *Service) Play(ctx context.Context, sessionID string, req PlayRequest) (playback.Result, error) {
	opts, err := playOptions(req)
	if err != nil {
		return playback.Result{}, err
	}
	l, err := s.LoadRecording(ctx, sessionID)
	if err != nil {
		return playback.Result{}, err
	}
	return s.player.Play(ctx, l, opts...)
}

func playOptions(req PlayRequest) ([]playback.PlayOption, error) {
	var opts []playback.PlayOption
	if req.Speed < 0 {
		return nil, fmt.Errorf("%w: speed must not be negative", ErrInvalidRequest)
	}
	if req.Speed > 0 {
		opts = append(opts, playback.WithRunSpeed(req.Speed))
	}
	if req.Start != nil || req.End != nil {
		start, end := 0, -1
		if req.Start != nil {
			start = *req.Start
		}
		if req.End != nil {
			end = *req.End
		}
		if start < 0 {
			return nil, fmt.Errorf("%w: start must not be negative", ErrInvalidRequest)
		}
		opts = append(opts, playback.WithRange(start, end))
	}
	if len(req.Categories) > 0 {
		cats := make([]model.Category, 0, len(req.Categories))
		for _, name := range req.Categories {
			c := model.Category(name)
			if !c.Valid() {
				return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, name)
			}
			cats = append(cats, c)
		}
		opts = append(opts, playback.WithCategories(cats...))
	}
	return opts, nil
}

// StopPlayback requests the running playback to stop after the current
// event. It reports whether a playback was running.
func (s *Service) StopPlayback() bool {
	if s.ready() != nil {
		return false
	}
	return s.player.StopIfPlaying()
}

// SetSpeed changes the playback speed, clamped to the scheduler's minimum.
func (s *Service) SetSpeed(speed float64) float64 {
	if s.ready() != nil {
		return 0
	}
	s.player.SetSpeed(speed)
	return s.player.Speed()
}

// Train fits the model on every persisted recording and saves it under the
// configured model name.
func (s *Service) Train(ctx context.Context) (TrainResult, error) {
	if err := s.ready(); err != nil {
		return TrainResult{}, err
	}
	persisted, err := s.recordings.List()
	if err != nil {
		return TrainResult{}, err
	}
	if len(persisted) < s.minRecordings {
		return TrainResult{}, fmt.Errorf("%w: need %d, found %d", ErrNotEnoughRecordings, s.minRecordings, len(persisted))
	}

	logs := make([]*eventlog.Log, 0, len(persisted))
	skipped := 0
	for _, p := range persisted {
		l, err := s.recordings.Load(p.Path)
		if err != nil {
			skipped++
			s.logger.Warn(ctx, "could not load recording for training", logger.String("path", p.Path), logger.Error(err))
			continue
		}
		logs = append(logs, l)
	}

	s.logger.Info(ctx, "training", logger.Int("recordings", len(logs)), logger.Int("skipped", skipped))
	m, err := s.model.Train(ctx, logs, s.testFraction)
	if err != nil {
		return TrainResult{}, err
	}
	loc, err := s.model.Save(ctx, s.modelName)
	if err != nil {
		return TrainResult{}, err
	}
	return TrainResult{Metrics: m, Location: loc, Recordings: len(logs), Skipped: skipped}, nil
}

// LoadModel replaces the current model with the saved one.
func (s *Service) LoadModel(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.model.Load(ctx, s.modelName)
}

// Predict guesses the next interaction after the last contextSize events of
// a recording (5 when contextSize <= 0). An untrained model is loaded from
// the artifact store first.
func (s *Service) Predict(ctx context.Context, sessionID string, contextSize int) (PredictResult, error) {
	l, err := s.LoadRecording(ctx, sessionID)
	if err != nil {
		return PredictResult{}, err
	}
	if l.Len() == 0 {
		return PredictResult{}, ErrEmptyRecording
	}
	if !s.model.IsTrained() {
		if err := s.model.Load(ctx, s.modelName); err != nil {
			if errors.Is(err, predict.ErrArtifactNotFound) {
				return PredictResult{}, fmt.Errorf("%w: %v", predict.ErrNotTrained, err)
			}
			return PredictResult{}, err
		}
	}

	if contextSize <= 0 {
		contextSize = defaultContextSize
	}
	contextSize = min(contextSize, l.Len())
	events := l.Events()
	p, err := s.model.PredictNext(events[len(events)-contextSize:])
	if err != nil {
		return PredictResult{}, err
	}
	return PredictResult{Prediction: p, ContextSize: contextSize}, nil
}

// FeatureImportance returns the per-feature importance of the current model.
func (s *Service) FeatureImportance() (map[string]float64, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.model.FeatureImportance()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"recordingsDir": s.recordingsDir,
		"modelName":     s.modelName,
		"queueSize":     s.queueSize,
	}
	if !s.started {
		return stats
	}

	stats["capturing"] = s.capturing.Load()
	stats["playing"] = s.player.IsPlaying()
	stats["speed"] = s.player.Speed()
	stats["modelTrained"] = s.model.IsTrained()

	if persisted, err := s.recordings.List(); err == nil {
		stats["recordings"] = len(persisted)
	} else {
		s.logger.Warn(ctx, "listing recordings for stats", logger.Error(err))
	}
	if s.catalog != nil {
		if n, err := s.catalog.Count(ctx); err == nil {
			stats["catalogued"] = n
		} else {
			s.logger.Warn(ctx, "counting catalog for stats", logger.Error(err))
		}
	}
	if m, err := s.model.LastMetrics(); err == nil {
		stats["metrics"] = m
		classes := s.model.Classes()
		names := make([]string, len(classes))
		for i, c := range classes {
			names[i] = string(c)
		}
		stats["classes"] = names
	}
	return stats
}
