package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/mimic/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.ModelName, convey.ShouldEqual, "behavior_model")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MIMIC_ADDR", ":8080")
			_ = os.Setenv("MIMIC_QUEUE_SIZE", "500")
			_ = os.Setenv("MIMIC_PLAYBACK_SPEED", "2.5")
			_ = os.Setenv("MIMIC_ANONYMIZE_KEYS", "false")
			_ = os.Setenv("MIMIC_MODEL_NAME", "nightly")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.PlaybackSpeed, convey.ShouldEqual, 2.5)
				convey.So(cfg.AnonymizeKeys, convey.ShouldBeFalse)
				convey.So(cfg.ModelName, convey.ShouldEqual, "nightly")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
recordings_dir: "/var/lib/mimic/recordings"
min_recordings: 5
forest_trees: 25
sensitive_patterns:
  - "(?i)vault"
  - "(?i)bank"
artifact_backend: s3
s3_bucket: mimic-models
s3_endpoint: "http://localhost:9000"
s3_path_style: true
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MIMIC_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RecordingsDir, convey.ShouldEqual, "/var/lib/mimic/recordings")
				convey.So(cfg.MinRecordings, convey.ShouldEqual, 5)
				convey.So(cfg.ForestTrees, convey.ShouldEqual, 25)
				convey.So(cfg.SensitivePatterns, convey.ShouldResemble, []string{"(?i)vault", "(?i)bank"})
				convey.So(cfg.ArtifactBackend, convey.ShouldEqual, "s3")
				convey.So(cfg.S3Bucket, convey.ShouldEqual, "mimic-models")
				convey.So(cfg.S3PathStyle, convey.ShouldBeTrue)
				convey.So(cfg.TestFraction, convey.ShouldEqual, 0.2) // From defaults
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
queue_size: 300
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MIMIC_CONFIG", tmpFile)
			_ = os.Setenv("MIMIC_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")  // Overridden by env
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300) // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MIMIC_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("MIMIC_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("MIMIC_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("MIMIC_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"MIMIC_CONFIG",
		"MIMIC_ADDR",
		"MIMIC_QUEUE_SIZE",
		"MIMIC_PLAYBACK_SPEED",
		"MIMIC_ANONYMIZE_KEYS",
		"MIMIC_MODEL_NAME",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "mimic-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
