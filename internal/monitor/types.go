// Package monitor turns encoder snapshots into publishable events.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package monitor

import (
	"time"

	"github.com/sweeney/quadrature-encoder/internal/encoder"
)

// EventType identifies what an Event reports.
type EventType string

const (
	EventPosition EventType = "POSITION"
	EventError    EventType = "ERROR"
)

// Event is a change to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Position  int64
	Delta     int64 // position change since the previous POSITION event
	Latency   time.Duration
	Errors    uint64 // errors drained by this snapshot
	LastError encoder.ErrorKind
}

// Input is a single snapshot taken at Time.
type Input struct {
	Snapshot encoder.Snapshot
	Time     time.Time
}

// Counts are running totals since startup. Snapshots drain the encoder's
// error count, so these are the only record of errors over time. Drained
// errors are attributed to the snapshot's most recent kind.
type Counts struct {
	Moves              int
	Errors             uint64
	ProtocolViolations uint64
	IOFailures         uint64
	Overflows          uint64
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Position  int64
	Counts    Counts
}
