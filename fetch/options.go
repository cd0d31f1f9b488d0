package fetch

import (
	"time"

	"go.uber.org/zap"
)

// DefaultMaxConcurrent bounds provider calls when Options.MaxConcurrent is not set.
const DefaultMaxConcurrent = 4

// Options configures a Bridge. Zero values are safe;
// defaults are applied in NewBridge():
//   - MaxConcurrent <= 0 => DefaultMaxConcurrent
//   - RateLimit <= 0     => unlimited
//   - Burst <= 0         => 1
//   - Timeout <= 0       => no per-fetch deadline
//   - nil Logger         => zap.NewNop()
type Options struct {
	// MaxConcurrent is the number of provider calls allowed at once.
	MaxConcurrent int

	// RateLimit caps provider calls per second; Burst is the bucket size.
	RateLimit float64
	Burst     int

	// Timeout bounds a single provider call.
	Timeout time.Duration

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
