package publish

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/quadrature-encoder/internal/monitor"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// mqttClient is the part of paho.Client the publisher uses.
type mqttClient interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// MQTTOptions configures an MQTTPublisher.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Topics   Topics
	Buffer   int // messages held while disconnected
	Logger   *slog.Logger
}

// MQTTPublisher publishes to an MQTT broker. Messages published while the
// connection is down are buffered and replayed, oldest first, on reconnect.
type MQTTPublisher struct {
	client mqttClient
	topics Topics
	log    *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	buf *ringBuffer

	connects atomic.Int64
}

// NewMQTTPublisher connects to the broker. A retained SHUTDOWN event with
// reason MQTT_DISCONNECT is registered as the last will.
func NewMQTTPublisher(o MQTTOptions) (*MQTTPublisher, error) {
	p := newMQTTPublisher(nil, o)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: p.now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topics.System, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn("mqtt connection lost", "error", err)
		})

	client := paho.NewClient(opts)
	p.client = client
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	p.log.Info("mqtt connected", "broker", o.Broker, "events", p.topics.Events)
	return p, nil
}

func newMQTTPublisher(client mqttClient, o MQTTOptions) *MQTTPublisher {
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	if o.Topics == (Topics{}) {
		o.Topics = NewTopics(DefaultTopicPrefix)
	}
	return &MQTTPublisher{
		client: client,
		topics: o.Topics,
		log:    log,
		now:    time.Now,
		buf:    newRingBuffer(o.Buffer, log),
	}
}

// Publish sends an encoder event at QoS 0 (at-most-once), not retained.
func (p *MQTTPublisher) Publish(event monitor.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(bufferedMsg{topic: p.topics.Events, payload: payload})
}

// PublishSystem sends a system lifecycle event at QoS 1 so that shutdown
// and heartbeat messages are delivered.
func (p *MQTTPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// send publishes msg, or buffers it while the connection is down. A
// publish that fails after the connection looked open is buffered too.
func (p *MQTTPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	if err := p.write(msg); err != nil {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *MQTTPublisher) write(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect replays anything buffered while offline. On every connect
// after the first it also announces RECONNECTED.
func (p *MQTTPublisher) onConnect() {
	n := p.connects.Add(1)

	p.mu.Lock()
	msgs, dropped := p.buf.drainAll()
	p.mu.Unlock()

	if len(msgs) > 0 || dropped > 0 {
		p.log.Info("replaying buffered messages", "count", len(msgs), "dropped", dropped)
	}
	for i, msg := range msgs {
		if err := p.write(msg); err != nil {
			p.log.Warn("replay failed, re-buffering", "error", err, "remaining", len(msgs)-i)
			p.mu.Lock()
			for _, m := range msgs[i:] {
				p.buf.push(m)
			}
			p.mu.Unlock()
			return
		}
	}

	if n > 1 {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err := p.write(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1}); err != nil {
			p.log.Warn("failed to publish reconnect event", "error", err)
		}
	}
}

// Buffered returns how many messages are waiting for a connection.
func (p *MQTTPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the client currently has a live connection.
func (p *MQTTPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		p.log.Warn("closing with undelivered messages", "count", n)
	}
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
