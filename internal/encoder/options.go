package encoder

import (
	"log/slog"
	"time"

	"github.com/sweeney/quadrature-encoder/internal/metrics"
)

// DefaultPriority is the SCHED_FIFO priority requested for the reader loop.
const DefaultPriority = 99

// DefaultFailureBackoff is the pause between consecutive failed edge waits.
const DefaultFailureBackoff = 10 * time.Millisecond

type options struct {
	logger   *slog.Logger
	recorder metrics.Recorder
	priority int
	backoff  time.Duration
	now      func() time.Time
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		priority: DefaultPriority,
		backoff:  DefaultFailureBackoff,
		now:      time.Now,
	}
}

// Option configures Launch.
type Option func(*options)

// WithLogger sets the logger used by the reader loop.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPriority sets the real-time priority of the reader loop's thread.
// Zero leaves the thread on the normal scheduler.
func WithPriority(p int) Option {
	return func(o *options) { o.priority = p }
}

// WithFailureBackoff sets the pause after a failed edge wait. Zero retries
// immediately.
func WithFailureBackoff(d time.Duration) Option {
	return func(o *options) { o.backoff = d }
}

// WithClock replaces time.Now for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
