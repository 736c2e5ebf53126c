package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the "mimic" metric namespace. Empty is ignored.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem places every metric under subsystem, e.g. "recorder".
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) { m.subsystem = subsystem }
}

// WithHistogramBuckets sets the playback delay histogram buckets, in
// seconds. Empty keeps prometheus.DefBuckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithMetricsEnabled turns the package-level Record/Update helpers into no-ops when false.
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) { m.enabled = enabled }
}

// WithConstLabels attaches fixed labels (host, device) to every metric.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(m *Manager) {
		if len(labels) > 0 {
			m.constLabels = labels
		}
	}
}

// WithPrometheusRegistry registers collectors on registry instead of the default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
