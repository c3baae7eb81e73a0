package publish

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/quadrature-encoder/internal/encoder"
	"github.com/sweeney/quadrature-encoder/internal/monitor"
)

var ts = time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)

func TestNewTopics(t *testing.T) {
	assert.Equal(t, Topics{Events: "encoder/quadrature/events", System: "encoder/quadrature/system"}, NewTopics(""))
	assert.Equal(t, Topics{Events: "lab/enc/events", System: "lab/enc/system"}, NewTopics("/lab/enc/"))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "encoder.quadrature.events", Subject("encoder/quadrature/events"))
	assert.Equal(t, "a.b", Subject("/a/b/"))
}

func TestFormatPayloadPosition(t *testing.T) {
	payload, err := FormatPayload(monitor.Event{
		Timestamp: ts,
		Type:      monitor.EventPosition,
		Position:  -12,
		Delta:     -4,
		Latency:   37 * time.Microsecond,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"encoder":{"timestamp":"2026-02-10T08:30:00Z","event":"POSITION","position":-12,"delta":-4,"latency_us":37}}`, string(payload))
}

func TestFormatPayloadError(t *testing.T) {
	payload, err := FormatPayload(monitor.Event{
		Timestamp: ts.In(time.FixedZone("X", 3600)),
		Type:      monitor.EventError,
		Position:  5,
		Errors:    3,
		LastError: encoder.KindProtocolViolation,
	})
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "2026-02-10T08:30:00Z", parsed.Encoder.Timestamp, "timestamps are UTC")
	assert.Equal(t, "ERROR", parsed.Encoder.Event)
	assert.Equal(t, uint64(3), parsed.Encoder.Errors)
	assert.Equal(t, "protocol_violation", parsed.Encoder.LastError)
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"})
	require.NoError(t, err)
	assert.Equal(t, `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`, string(payload))

	payload, err = FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "RECONNECTED"})
	require.NoError(t, err)
	assert.Equal(t, `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"RECONNECTED"}}`, string(payload))
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, payload)
}

func TestFake(t *testing.T) {
	f := NewFake()
	require.NoError(t, f.Publish(monitor.Event{Timestamp: ts, Type: monitor.EventPosition, Position: 1}))
	require.NoError(t, f.PublishSystem(SystemEvent{Timestamp: ts, Event: "HEARTBEAT", Retained: true}))

	require.Len(t, f.Events(), 1)
	require.Len(t, f.Payloads(), 1)
	require.Len(t, f.SystemEvents(), 1)
	assert.True(t, f.SystemEvents()[0].Retained)
	assert.Contains(t, string(f.SystemPayloads()[0]), "HEARTBEAT")

	f.PublishError = errors.New("broker down")
	assert.EqualError(t, f.Publish(monitor.Event{}), "broker down")
	assert.Len(t, f.Events(), 1)

	f.SetConnected(true)
	assert.True(t, f.IsConnected())
	require.NoError(t, f.Close())
	assert.True(t, f.Closed())

	f.Reset()
	assert.Empty(t, f.Events())
	assert.Empty(t, f.SystemEvents())
	assert.False(t, f.Closed())
	assert.False(t, f.IsConnected())
	assert.NoError(t, f.Publish(monitor.Event{}))
}

func TestDiscard(t *testing.T) {
	var p Publisher = Discard{}
	assert.NoError(t, p.Publish(monitor.Event{}))
	assert.NoError(t, p.PublishSystem(SystemEvent{}))
	assert.NoError(t, p.Close())
}

// fakeToken is a completed paho token.
type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type sent struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type fakeClient struct {
	mu        sync.Mutex
	open      bool
	err       error
	sent      []sent
	quiesce   uint
	disconned bool
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return fakeToken{err: c.err}
	}
	c.sent = append(c.sent, sent{topic, qos, retained, string(payload.([]byte))})
	return fakeToken{}
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	c.quiesce = quiesce
	c.disconned = true
	c.mu.Unlock()
}

func newTestMQTT(c *fakeClient, buffer int) *MQTTPublisher {
	p := newMQTTPublisher(c, MQTTOptions{
		Topics: NewTopics("enc"),
		Buffer: buffer,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	p.now = func() time.Time { return ts }
	return p
}

func TestMQTTPublishQoS(t *testing.T) {
	c := &fakeClient{open: true}
	p := newTestMQTT(c, 10)

	require.NoError(t, p.Publish(monitor.Event{Timestamp: ts, Type: monitor.EventPosition, Position: 4}))
	require.NoError(t, p.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP", Retained: true}))

	require.Len(t, c.sent, 2)
	assert.Equal(t, "enc/events", c.sent[0].topic)
	assert.Equal(t, byte(0), c.sent[0].qos)
	assert.False(t, c.sent[0].retained)
	assert.Equal(t, "enc/system", c.sent[1].topic)
	assert.Equal(t, byte(1), c.sent[1].qos)
	assert.True(t, c.sent[1].retained)
	assert.True(t, p.IsConnected())
}

func TestMQTTBuffersWhileDisconnected(t *testing.T) {
	c := &fakeClient{}
	p := newTestMQTT(c, 2)

	for pos := int64(1); pos <= 3; pos++ {
		require.NoError(t, p.Publish(monitor.Event{Timestamp: ts, Type: monitor.EventPosition, Position: pos}))
	}
	assert.Empty(t, c.sent)
	assert.Equal(t, 2, p.Buffered())

	// First connect replays without announcing a reconnect.
	c.open = true
	p.onConnect()
	require.Len(t, c.sent, 2)
	assert.Contains(t, c.sent[0].payload, `"position":2`)
	assert.Contains(t, c.sent[1].payload, `"position":3`)
	assert.Zero(t, p.Buffered())
}

func TestMQTTReconnectAnnounces(t *testing.T) {
	c := &fakeClient{open: true}
	p := newTestMQTT(c, 10)

	p.onConnect()
	assert.Empty(t, c.sent)

	p.onConnect()
	require.Len(t, c.sent, 1)
	assert.Equal(t, "enc/system", c.sent[0].topic)
	assert.Equal(t, `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"RECONNECTED"}}`, c.sent[0].payload)
}

func TestMQTTFailedPublishIsBuffered(t *testing.T) {
	c := &fakeClient{open: true, err: errors.New("not connected")}
	p := newTestMQTT(c, 10)

	err := p.Publish(monitor.Event{Timestamp: ts, Type: monitor.EventPosition, Position: 9})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish enc/events")
	assert.Equal(t, 1, p.Buffered())

	// Replay fails too: the message goes back in the buffer.
	p.onConnect()
	assert.Equal(t, 1, p.Buffered())

	c.err = nil
	p.onConnect()
	assert.Zero(t, p.Buffered())
	require.Len(t, c.sent, 2, "replayed event plus RECONNECTED")
	assert.Contains(t, c.sent[0].payload, `"position":9`)
}

func TestMQTTClose(t *testing.T) {
	c := &fakeClient{}
	p := newTestMQTT(c, 10)
	require.NoError(t, p.Close())
	assert.True(t, c.disconned)
	assert.Equal(t, uint(1000), c.quiesce)
}
