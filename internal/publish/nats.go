package publish

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sweeney/quadrature-encoder/internal/monitor"
)

// NATSOptions configures a NATSPublisher.
type NATSOptions struct {
	URL    string
	Name   string
	Topics Topics
	Logger *slog.Logger
}

// NATSPublisher publishes to NATS core subjects derived from the topics by
// replacing '/' with '.'. The client buffers outgoing messages while it
// reconnects.
type NATSPublisher struct {
	conn   *nats.Conn
	events string
	system string
	log    *slog.Logger
}

// Subject converts an MQTT style topic into a NATS subject.
func Subject(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

// NewNATSPublisher connects to the NATS server at o.URL.
func NewNATSPublisher(o NATSOptions) (*NATSPublisher, error) {
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	if o.Topics == (Topics{}) {
		o.Topics = NewTopics(DefaultTopicPrefix)
	}
	p := &NATSPublisher{
		events: Subject(o.Topics.Events),
		system: Subject(o.Topics.System),
		log:    log,
	}

	conn, err := nats.Connect(o.URL,
		nats.Name(o.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(5*time.Second),
		nats.Timeout(connectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
			payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
			if err := nc.Publish(p.system, payload); err != nil {
				log.Warn("failed to publish reconnect event", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p.conn = conn

	log.Info("nats connected", "url", o.URL, "subject", p.events)
	return p, nil
}

// Publish sends an encoder event. Delivery is fire-and-forget.
func (p *NATSPublisher) Publish(event monitor.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	if err := p.conn.Publish(p.events, payload); err != nil {
		return fmt.Errorf("publish %s: %w", p.events, err)
	}
	return nil
}

// PublishSystem sends a system event and flushes so it reaches the server
// before the call returns.
func (p *NATSPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if err := p.conn.Publish(p.system, payload); err != nil {
		return fmt.Errorf("publish %s: %w", p.system, err)
	}
	if !p.conn.IsConnected() {
		return nil
	}
	if err := p.conn.FlushTimeout(publishTimeout); err != nil {
		return fmt.Errorf("flush %s: %w", p.system, err)
	}
	return nil
}

// IsConnected reports whether the connection is up.
func (p *NATSPublisher) IsConnected() bool {
	return p.conn.IsConnected()
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}
