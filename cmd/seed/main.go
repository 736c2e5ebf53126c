package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/mimic/internal/seed"
	"github.com/okian/mimic/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	var (
		recordingsDir = flag.String("recordings", "recorded_data", "Directory synthetic recordings are written to")
		modelsDir     = flag.String("models", "models", "Model directory of the local recorder")
		sessions      = flag.Int("sessions", seed.DefaultSessions, "Number of recordings to generate")
		events        = flag.Int("events", seed.DefaultEvents, "Events per recording")
		interval      = flag.Duration("interval", seed.DefaultInterval, "Spacing between synthetic event timestamps")
		seedValue     = flag.Int64("seed", 42, "Base random seed")
		baseURL       = flag.String("url", "", "Base URL of a running service to train and query (empty skips)")
		contextSize   = flag.Int("context", seed.DefaultContextSize, "History length for the prediction request")
		timeout       = flag.Duration("timeout", seed.DefaultTimeout, "HTTP request timeout")
		verbose       = flag.Bool("verbose", false, "Log every recording")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &seed.Config{
		RecordingsDir: *recordingsDir,
		ModelsDir:     *modelsDir,
		Sessions:      *sessions,
		Events:        *events,
		Interval:      *interval,
		Seed:          *seedValue,
		BaseURL:       *baseURL,
		ContextSize:   *contextSize,
		Timeout:       *timeout,
		Verbose:       *verbose,
	}
	if _, err := seed.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("seed failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
