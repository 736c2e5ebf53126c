package seed

import "time"

// Defaults applied by Run when a Config field is left zero.
const (
	DefaultSessions    = 3
	DefaultEvents      = 200
	DefaultInterval    = 100 * time.Millisecond
	DefaultContextSize = 5
	DefaultTimeout     = 30 * time.Second
)

const sessionSpacing = time.Hour
