package publish

import (
	"io"
	"log/slog"
	"testing"
)

func testBuffer(capacity int) *ringBuffer {
	return newRingBuffer(capacity, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pushN(rb *ringBuffer, from, to int) {
	for i := from; i < to; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := testBuffer(10)
	got, dropped := rb.drainAll()
	if got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
	if dropped != 0 {
		t.Errorf("expected 0 dropped, got %d", dropped)
	}
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := testBuffer(10)
	pushN(rb, 0, 5)

	got, _ := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := range got {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}

	if again, _ := rb.drainAll(); again != nil {
		t.Errorf("expected nil from second drain, got %d items", len(again))
	}
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := testBuffer(5)
	pushN(rb, 0, 8)

	got, dropped := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	if dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", dropped)
	}
	for i := range got {
		want := byte(i + 3)
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}

	if _, dropped := rb.drainAll(); dropped != 0 {
		t.Errorf("drop count should reset on drain, got %d", dropped)
	}
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := testBuffer(5)

	pushN(rb, 0, 3)
	if got, _ := rb.drainAll(); len(got) != 3 {
		t.Fatalf("cycle 1: expected 3 items, got %d", len(got))
	}

	pushN(rb, 10, 14)
	got, _ := rb.drainAll()
	if len(got) != 4 {
		t.Fatalf("cycle 2: expected 4 items, got %d", len(got))
	}
	for i, msg := range got {
		if want := byte(10 + i); msg.payload[0] != want {
			t.Errorf("cycle 2 item %d: expected %d, got %d", i, want, msg.payload[0])
		}
	}
}

func TestRingBufferLen(t *testing.T) {
	rb := testBuffer(10)
	if rb.len() != 0 {
		t.Errorf("expected len 0, got %d", rb.len())
	}

	pushN(rb, 0, 2)
	if rb.len() != 2 {
		t.Errorf("expected len 2, got %d", rb.len())
	}

	rb.drainAll()
	if rb.len() != 0 {
		t.Errorf("expected len 0 after drain, got %d", rb.len())
	}
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	rb := testBuffer(0)
	pushN(rb, 0, 3)
	got, dropped := rb.drainAll()
	if len(got) != 1 || got[0].payload[0] != 2 {
		t.Fatalf("expected only the newest message, got %+v", got)
	}
	if dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", dropped)
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := testBuffer(10)
	rb.push(bufferedMsg{
		topic:    "encoder/quadrature/system",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})

	got, _ := rb.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	m := got[0]
	if m.topic != "encoder/quadrature/system" || string(m.payload) != `{"test":true}` || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}
