package profiler

import (
	"time"

	"go.uber.org/zap"
)

// ProfilerOption configures a Profiler.
type ProfilerOption func(*Profiler)

// WithInterval sets how often stats are logged.
//
// Parameters:
//   - d: the interval; non-positive values are ignored
//
// Returns:
//   - ProfilerOption: a function that applies the interval
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithLogger sets the logger stats are written to.
//
// Parameters:
//   - l: the logger; nil is ignored
//
// Returns:
//   - ProfilerOption: a function that applies the logger
func WithLogger(l *zap.Logger) ProfilerOption {
	return func(p *Profiler) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock replaces time.Now.
//
// Parameters:
//   - now: the time source
//
// Returns:
//   - ProfilerOption: a function that applies the clock
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}
