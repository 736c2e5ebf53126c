package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables consulted by Load.
const (
	envPrefix     = "MIMIC_"
	envConfigPath = "MIMIC_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MIMIC_CONFIG is set
//  3. env (prefix MIMIC_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// MIMIC_QUEUE_SIZE -> queue_size
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.RecordingsDir) == "":
		return fmt.Errorf("%w: recordings_dir must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ModelName) == "":
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.TestFraction < 0 || c.TestFraction >= 1:
		return fmt.Errorf("%w: test_fraction must be in [0, 1)", ErrInvalidConfig)
	case c.ForestTrees <= 0:
		return fmt.Errorf("%w: forest_trees must be positive", ErrInvalidConfig)
	}

	switch c.ArtifactBackend {
	case "local":
		if strings.TrimSpace(c.ModelsDir) == "" {
			return fmt.Errorf("%w: models_dir must not be empty", ErrInvalidConfig)
		}
	case "s3":
		if strings.TrimSpace(c.S3Bucket) == "" {
			return fmt.Errorf("%w: s3_bucket is required for the s3 backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownBackend, c.ArtifactBackend)
	}
	return nil
}
