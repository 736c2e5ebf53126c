package seed

import (
	"time"

	service "github.com/okian/mimic/internal/app"
)

// Config holds configuration for a seeding run.
type Config struct {
	RecordingsDir string        // Where synthetic recordings are written
	ModelsDir     string        // Model directory of the local service
	Sessions      int           // Number of recordings to generate
	Events        int           // Events per recording
	Interval      time.Duration // Spacing between synthetic timestamps
	Seed          int64         // Base seed; session i uses Seed+i
	BaseURL       string        // Running service to train against; empty skips HTTP
	ContextSize   int           // History length sent with the prediction request
	Timeout       time.Duration // HTTP request timeout
	Verbose       bool          // Log every recording
}

// Stats summarises a seeding run.
type Stats struct {
	Sessions   []string
	Events     int
	Dropped    int64
	Rejected   int64
	Train      *service.TrainResult
	Prediction *service.PredictResult
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
