// Package metrics provides Prometheus metrics for the mimic recorder, player and predictor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Capture
	eventsCaptured   *prometheus.CounterVec
	eventsDropped    prometheus.Counter
	eventsRejected   *prometheus.CounterVec
	eventsSensitive  prometheus.Counter
	recordingsSaved  prometheus.Counter
	recordingsLoaded prometheus.Counter
	decodeErrors     prometheus.Counter

	// Capture queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge

	// Playback
	playbackActive     prometheus.Gauge
	playbackRuns       *prometheus.CounterVec
	playbackDispatched *prometheus.CounterVec
	playbackSkipped    prometheus.Counter
	playbackFailed     *prometheus.CounterVec
	playbackDelay      prometheus.Histogram
	playbackSpeed      prometheus.Gauge

	// Model
	trainingDuration prometheus.Histogram
	trainingExamples *prometheus.GaugeVec
	modelAccuracy    *prometheus.GaugeVec
	trainingFailures prometheus.Counter
	predictions      *prometheus.CounterVec
	modelArtifacts   *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "mimic",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.eventsCaptured = auto.NewCounterVec(m.counterOpts("events_captured_total",
		"Events appended to a recording session by category"), []string{"category"})
	m.eventsDropped = auto.NewCounter(m.counterOpts("events_dropped_total",
		"Events dropped because the capture queue was full or closed"))
	m.eventsRejected = auto.NewCounterVec(m.counterOpts("events_rejected_total",
		"Events refused by the session (sealed, out of order, unknown category)"), []string{"reason"})
	m.eventsSensitive = auto.NewCounter(m.counterOpts("events_sensitive_total",
		"Events flagged sensitive by the capture gate"))
	m.recordingsSaved = auto.NewCounter(m.counterOpts("recordings_saved_total",
		"Recording artifacts written to disk"))
	m.recordingsLoaded = auto.NewCounter(m.counterOpts("recordings_loaded_total",
		"Recording artifacts decoded from disk"))
	m.decodeErrors = auto.NewCounter(m.counterOpts("recording_decode_errors_total",
		"Recording artifacts that failed to decode"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("capture_queue_size",
		"Current number of events buffered between capture and the session writer"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("capture_queue_capacity",
		"Configured capture queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("capture_queue_utilization_ratio",
		"Capture queue size divided by capacity"))

	m.playbackActive = auto.NewGauge(m.gaugeOpts("playback_active",
		"1 while a playback run is in progress"))
	m.playbackRuns = auto.NewCounterVec(m.counterOpts("playback_runs_total",
		"Playback runs by outcome"), []string{"outcome"})
	m.playbackDispatched = auto.NewCounterVec(m.counterOpts("playback_dispatched_total",
		"Events dispatched to the injector by category"), []string{"category"})
	m.playbackSkipped = auto.NewCounter(m.counterOpts("playback_sensitive_skipped_total",
		"Sensitive events withheld from the injector"))
	m.playbackFailed = auto.NewCounterVec(m.counterOpts("playback_dispatch_errors_total",
		"Per-event dispatch failures by category"), []string{"category"})
	m.playbackDelay = auto.NewHistogram(m.histogramOpts("playback_delay_seconds",
		"Inter-event delays applied during playback", m.histogramBuckets))
	m.playbackSpeed = auto.NewGauge(m.gaugeOpts("playback_speed",
		"Current playback speed factor"))

	m.trainingDuration = auto.NewHistogram(m.histogramOpts("training_duration_seconds",
		"Wall time spent fitting the classifier", prometheus.ExponentialBuckets(0.01, 2, 12)))
	m.trainingExamples = auto.NewGaugeVec(m.gaugeOpts("training_examples",
		"Examples used by the last successful training run"), []string{"partition"})
	m.modelAccuracy = auto.NewGaugeVec(m.gaugeOpts("model_accuracy_ratio",
		"Accuracy of the last successful training run"), []string{"partition"})
	m.trainingFailures = auto.NewCounter(m.counterOpts("training_failures_total",
		"Training runs that did not produce a model"))
	m.predictions = auto.NewCounterVec(m.counterOpts("predictions_total",
		"Next-event predictions by predicted category"), []string{"category"})
	m.modelArtifacts = auto.NewCounterVec(m.counterOpts("model_artifact_operations_total",
		"Model artifact saves and loads by result"), []string{"operation", "result"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", prometheus.ExponentialBuckets(1, 2, 14)),
		[]string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_total",
		"Errors by component and type"), []string{"component", "error_type"})
}

// Capture

// RecordEventCaptured counts one appended event.
func RecordEventCaptured(category string) {
	if globalManager.enabled {
		globalManager.eventsCaptured.WithLabelValues(category).Inc()
	}
}

// RecordEventDropped counts one event lost at the capture queue.
func RecordEventDropped() {
	if globalManager.enabled {
		globalManager.eventsDropped.Inc()
	}
}

// RecordEventRejected counts one event refused by a session.
func RecordEventRejected(reason string) {
	if globalManager.enabled {
		globalManager.eventsRejected.WithLabelValues(reason).Inc()
	}
}

// RecordEventSensitive counts one event flagged by the capture gate.
func RecordEventSensitive() {
	if globalManager.enabled {
		globalManager.eventsSensitive.Inc()
	}
}

// RecordRecordingSaved counts one persisted recording.
func RecordRecordingSaved() {
	if globalManager.enabled {
		globalManager.recordingsSaved.Inc()
	}
}

// RecordRecordingLoaded counts one decoded recording.
func RecordRecordingLoaded() {
	if globalManager.enabled {
		globalManager.recordingsLoaded.Inc()
	}
}

// RecordDecodeError counts one malformed recording artifact.
func RecordDecodeError() {
	if globalManager.enabled {
		globalManager.decodeErrors.Inc()
	}
}

// Capture queue

// UpdateQueueSize sets the capture queue depth.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the configured capture queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets the capture queue fill ratio.
func UpdateQueueUtilization(utilization float64) {
	if globalManager.enabled {
		globalManager.queueUtilization.Set(utilization)
	}
}

// Playback

// SetPlaybackActive flips the playback-in-progress gauge.
func SetPlaybackActive(active bool) {
	if !globalManager.enabled {
		return
	}
	if active {
		globalManager.playbackActive.Set(1)
		return
	}
	globalManager.playbackActive.Set(0)
}

// RecordPlaybackRun counts a finished run ("completed", "stopped", "cancelled", "rejected").
func RecordPlaybackRun(outcome string) {
	if globalManager.enabled {
		globalManager.playbackRuns.WithLabelValues(outcome).Inc()
	}
}

// RecordPlaybackDispatched counts one event handed to the injector.
func RecordPlaybackDispatched(category string) {
	if globalManager.enabled {
		globalManager.playbackDispatched.WithLabelValues(category).Inc()
	}
}

// RecordPlaybackSkipped counts one sensitive event withheld from the injector.
func RecordPlaybackSkipped() {
	if globalManager.enabled {
		globalManager.playbackSkipped.Inc()
	}
}

// RecordPlaybackDispatchError counts one failed dispatch.
func RecordPlaybackDispatchError(category string) {
	if globalManager.enabled {
		globalManager.playbackFailed.WithLabelValues(category).Inc()
	}
}

// RecordPlaybackDelay observes one applied inter-event delay.
func RecordPlaybackDelay(d time.Duration) {
	if globalManager.enabled {
		globalManager.playbackDelay.Observe(d.Seconds())
	}
}

// UpdatePlaybackSpeed sets the effective speed factor.
func UpdatePlaybackSpeed(speed float64) {
	if globalManager.enabled {
		globalManager.playbackSpeed.Set(speed)
	}
}

// Model

// RecordTraining records a successful training run.
func RecordTraining(d time.Duration, trainCount, testCount int, trainAcc, testAcc float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.trainingDuration.Observe(d.Seconds())
	globalManager.trainingExamples.WithLabelValues("train").Set(float64(trainCount))
	globalManager.trainingExamples.WithLabelValues("test").Set(float64(testCount))
	globalManager.modelAccuracy.WithLabelValues("train").Set(trainAcc)
	globalManager.modelAccuracy.WithLabelValues("test").Set(testAcc)
}

// RecordTrainingFailure counts a training run that left the model untouched.
func RecordTrainingFailure() {
	if globalManager.enabled {
		globalManager.trainingFailures.Inc()
	}
}

// RecordPrediction counts one prediction.
func RecordPrediction(category string) {
	if globalManager.enabled {
		globalManager.predictions.WithLabelValues(category).Inc()
	}
}

// RecordModelArtifact counts a model save/load ("ok", "not_found", "invalid", "error").
func RecordModelArtifact(operation, result string) {
	if globalManager.enabled {
		globalManager.modelArtifacts.WithLabelValues(operation, result).Inc()
	}
}

// HTTP

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// Errors

// RecordErrorByComponent records an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
