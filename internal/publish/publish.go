// Package publish sends encoder events to a message broker, with fakes for
// testing.
package publish

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/quadrature-encoder/internal/monitor"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "encoder/quadrature"

// Topics names the two destinations every sink writes to.
type Topics struct {
	Events string
	System string
}

// NewTopics derives the event and system topics from prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Events: prefix + "/events",
		System: prefix + "/system",
	}
}

// Publisher publishes events to a broker.
type Publisher interface {
	// Publish sends an encoder event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event monitor.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the message body for encoder events.
type Payload struct {
	Encoder EncoderPayload `json:"encoder"`
}

// EncoderPayload contains the event details.
type EncoderPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Position  int64  `json:"position"`
	Delta     int64  `json:"delta,omitempty"`
	LatencyUs int64  `json:"latency_us"`
	Errors    uint64 `json:"errors,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// FormatPayload creates the JSON payload for an encoder event.
func FormatPayload(event monitor.Event) ([]byte, error) {
	p := EncoderPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Event:     string(event.Type),
		Position:  event.Position,
		Delta:     event.Delta,
		LatencyUs: event.Latency.Microseconds(),
		Errors:    event.Errors,
	}
	if event.Type == monitor.EventError {
		p.LastError = event.LastError.String()
	}
	return json.Marshal(Payload{Encoder: p})
}

// SystemPayload is the message body for simple system events (LWT,
// RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Discard is the publisher used when no sink is configured.
type Discard struct{}

func (Discard) Publish(monitor.Event) error     { return nil }
func (Discard) PublishSystem(SystemEvent) error { return nil }
func (Discard) Close() error                    { return nil }
func (Discard) IsConnected() bool               { return false }
