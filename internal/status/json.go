package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	SessionID     string       `json:"session_id"`
	Phase         string       `json:"phase"`
	Position      int64        `json:"position"`
	LatencyUs     int64        `json:"latency_us"`
	LastError     string       `json:"last_error"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Broker        BrokerStatus `json:"broker"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// BrokerStatus reports the publish sink's connection state.
type BrokerStatus struct {
	Sink      string `json:"sink"`
	Connected bool   `json:"connected"`
	URL       string `json:"url,omitempty"`
}

// CountsJSON is the JSON representation of running totals.
type CountsJSON struct {
	Moves              int    `json:"moves"`
	Errors             uint64 `json:"errors"`
	ProtocolViolations uint64 `json:"protocol_violations"`
	IOFailures         uint64 `json:"io_failures"`
	Overflows          uint64 `json:"overflows"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend     string `json:"backend"`
	Chip        string `json:"chip,omitempty"`
	ChanA       int    `json:"chan_a"`
	ChanB       int    `json:"chan_b"`
	Priority    int    `json:"priority"`
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	TopicPrefix string `json:"topic_prefix,omitempty"`
	HTTPAddr    string `json:"http_addr,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Config
	return StatusInner{
		SessionID:     snap.SessionID,
		Phase:         snap.Phase.String(),
		Position:      snap.Position,
		LatencyUs:     snap.Latency.Microseconds(),
		LastError:     snap.LastError.String(),
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Broker:        BrokerStatus{Sink: c.Sink, Connected: snap.BrokerConnected, URL: c.Broker},
		Counts: CountsJSON{
			Moves:              snap.Counts.Moves,
			Errors:             snap.Counts.Errors,
			ProtocolViolations: snap.Counts.ProtocolViolations,
			IOFailures:         snap.Counts.IOFailures,
			Overflows:          snap.Counts.Overflows,
		},
		Config: ConfigJSON{
			Backend:     c.Backend,
			Chip:        c.Chip,
			ChanA:       c.ChanA,
			ChanB:       c.ChanB,
			Priority:    c.Priority,
			PollMs:      c.PollMs,
			HeartbeatMs: c.HeartbeatMs,
			TopicPrefix: c.TopicPrefix,
			HTTPAddr:    c.HTTPAddr,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for a system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
