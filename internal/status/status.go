// Package status provides a thread-safe status tracker for the
// encoder-monitor daemon. It is read by the HTTP handlers and used to build
// system event payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/quadrature-encoder/internal/encoder"
	"github.com/sweeney/quadrature-encoder/internal/monitor"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Backend     string
	Chip        string
	ChanA       int
	ChanB       int
	Priority    int
	PollMs      int64
	HeartbeatMs int64
	Sink        string
	Broker      string
	TopicPrefix string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	SessionID       string
	Phase           encoder.Phase
	Position        int64
	Latency         time.Duration
	LastError       encoder.ErrorKind
	Baselined       bool
	Counts          monitor.Counts
	StartTime       time.Time
	Now             time.Time
	BrokerConnected bool
	Network         *NetworkInfo
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, session id and config.
func NewTracker(startTime time.Time, sessionID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			SessionID: sessionID,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the latest encoder snapshot and the monitor's totals.
// Called from runLoop on every tick. LastError is latched: a snapshot
// without errors does not clear it.
func (t *Tracker) Update(snap encoder.Snapshot, baselined bool, counts monitor.Counts) {
	t.mu.Lock()
	t.snap.Position = snap.Position
	t.snap.Latency = snap.Latency
	if snap.LastError != encoder.KindNone {
		t.snap.LastError = snap.LastError
	}
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetPhase sets the encoder lifecycle phase.
func (t *Tracker) SetPhase(p encoder.Phase) {
	t.mu.Lock()
	t.snap.Phase = p
	t.mu.Unlock()
}

// SetBrokerConnected sets the broker connection status.
func (t *Tracker) SetBrokerConnected(connected bool) {
	t.mu.Lock()
	t.snap.BrokerConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
