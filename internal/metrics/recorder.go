// Package metrics exposes encoder observability hooks. The default recorder
// does nothing; the Prometheus recorder backs the /metrics endpoint.
package metrics

import "time"

// Wake result labels.
const (
	WakeEdge     = "edge"
	WakeSpurious = "spurious"
)

// Recorder receives events from the reader loop. Calls happen outside the
// encoder's state lock and must not block.
type Recorder interface {
	// ObserveStep records one committed ±1 step and the position it produced.
	ObserveStep(delta int, position int64, latency time.Duration)
	// IncWake counts a wake-up of the reader loop by result.
	IncWake(result string)
	// IncError counts one recorded error by kind.
	IncError(kind string)
	// SetRunning reports whether the reader loop is live.
	SetRunning(running bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStep(int, int64, time.Duration) {}
func (NoopRecorder) IncWake(string)                        {}
func (NoopRecorder) IncError(string)                       {}
func (NoopRecorder) SetRunning(bool)                       {}
