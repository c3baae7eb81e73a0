package monitor

import (
	"time"

	"github.com/sweeney/quadrature-encoder/internal/encoder"
)

// Monitor tracks the last seen position and accumulates error counts.
type Monitor struct {
	baselined     bool
	position      int64
	startTime     time.Time
	counts        Counts
	lastHeartbeat time.Time
}

// NewMonitor creates a monitor. The startTime is used for calculating
// uptime in heartbeat events.
func NewMonitor(startTime time.Time) *Monitor {
	return &Monitor{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes a snapshot and returns any events that should be emitted.
// The first snapshot only establishes the baseline position. Errors are
// reported from the first snapshot on, since they are already drained.
// When both apply, POSITION comes before ERROR.
func (m *Monitor) Process(input Input) []Event {
	snap := input.Snapshot
	var events []Event

	if !m.baselined {
		m.baselined = true
		m.position = snap.Position
	} else if snap.Position != m.position {
		events = append(events, Event{
			Timestamp: input.Time,
			Type:      EventPosition,
			Position:  snap.Position,
			Delta:     snap.Position - m.position,
			Latency:   snap.Latency,
		})
		m.position = snap.Position
		m.counts.Moves++
	}

	if snap.Errors > 0 {
		events = append(events, Event{
			Timestamp: input.Time,
			Type:      EventError,
			Position:  snap.Position,
			Latency:   snap.Latency,
			Errors:    snap.Errors,
			LastError: snap.LastError,
		})
		m.countErrors(snap.Errors, snap.LastError)
	}

	return events
}

func (m *Monitor) countErrors(n uint64, kind encoder.ErrorKind) {
	m.counts.Errors += n
	switch kind {
	case encoder.KindProtocolViolation:
		m.counts.ProtocolViolations += n
	case encoder.KindIOFailure:
		m.counts.IOFailures += n
	case encoder.KindOverflow:
		m.counts.Overflows += n
	}
}

// IsBaselined returns whether a snapshot has been processed.
func (m *Monitor) IsBaselined() bool {
	return m.baselined
}

// Position returns the last processed position.
func (m *Monitor) Position() int64 {
	return m.position
}

// Counts returns the running totals.
func (m *Monitor) Counts() Counts {
	return m.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (m *Monitor) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !m.baselined {
		return nil
	}

	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Position:  m.position,
		Counts:    m.counts,
	}
}
