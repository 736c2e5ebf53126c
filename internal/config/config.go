// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load layers file and env on top.
// - External errors are wrapped with this package's sentinel kinds.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches log output to JSON lines.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// RecordingsDir holds one JSON artifact per recorded session.
	RecordingsDir string `koanf:"recordings_dir"`

	// CatalogPath is the SQLite index of persisted recordings. Empty disables it.
	CatalogPath string `koanf:"catalog_path"`

	// QueueSize bounds the buffer between the capture source and the session writer.
	QueueSize int `koanf:"queue_size"`

	// AnonymizeKeys replaces keys typed in sensitive contexts with "***".
	AnonymizeKeys bool `koanf:"anonymize_keys"`

	// SensitivePatterns are extra regular expressions matched against window titles.
	SensitivePatterns []string `koanf:"sensitive_patterns"`

	// PlaybackSpeed is the default speed factor (clamped to >= 0.1).
	PlaybackSpeed float64 `koanf:"playback_speed"`

	// ModelName names the artifact written by training and read by prediction.
	ModelName string `koanf:"model_name"`

	// TestFraction is the share of examples held out for evaluation.
	TestFraction float64 `koanf:"test_fraction"`

	// MinRecordings is the number of persisted recordings required to train.
	MinRecordings int `koanf:"min_recordings"`

	// Forest hyper-parameters.
	ForestTrees    int   `koanf:"forest_trees"`
	ForestMaxDepth int   `koanf:"forest_max_depth"`
	ForestMinLeaf  int   `koanf:"forest_min_leaf"`
	RandomSeed     int64 `koanf:"random_seed"`

	// ArtifactBackend selects where model artifacts live: "local" or "s3".
	ArtifactBackend string `koanf:"artifact_backend"`

	// ModelsDir is the local model directory for the "local" backend.
	ModelsDir string `koanf:"models_dir"`

	// S3 settings, used when ArtifactBackend is "s3".
	S3Bucket    string `koanf:"s3_bucket"`
	S3Prefix    string `koanf:"s3_prefix"`
	S3Region    string `koanf:"s3_region"`
	S3Endpoint  string `koanf:"s3_endpoint"`
	S3PathStyle bool   `koanf:"s3_path_style"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		RecordingsDir:   "recorded_data",
		CatalogPath:     "recorded_data/catalog.db",
		QueueSize:       10_000,
		AnonymizeKeys:   true,
		PlaybackSpeed:   1.0,
		ModelName:       "behavior_model",
		TestFraction:    0.2,
		MinRecordings:   3,
		ForestTrees:     100,
		ForestMaxDepth:  0,
		ForestMinLeaf:   1,
		RandomSeed:      42,
		ArtifactBackend: "local",
		ModelsDir:       "models",
		S3Region:        "us-east-1",
	}
}
