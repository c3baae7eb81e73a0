package monitor

import (
	"testing"
	"time"

	"github.com/sweeney/quadrature-encoder/internal/encoder"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func snap(pos int64, errs uint64, kind encoder.ErrorKind) encoder.Snapshot {
	return encoder.Snapshot{Position: pos, Latency: 40 * time.Microsecond, Errors: errs, LastError: kind}
}

func TestNewMonitor(t *testing.T) {
	m := NewMonitor(t0)
	if m.IsBaselined() {
		t.Error("new monitor should not be baselined")
	}
	if !m.lastHeartbeat.Equal(t0) {
		t.Errorf("expected lastHeartbeat %v, got %v", t0, m.lastHeartbeat)
	}
}

func TestFirstSnapshotIsBaseline(t *testing.T) {
	m := NewMonitor(t0)

	events := m.Process(Input{Snapshot: snap(12, 0, encoder.KindNone), Time: t0})
	if len(events) != 0 {
		t.Fatalf("expected no events at baseline, got %d", len(events))
	}
	if !m.IsBaselined() {
		t.Error("should be baselined after first snapshot")
	}
	if m.Position() != 12 {
		t.Errorf("expected position 12, got %d", m.Position())
	}
}

func TestNoEventsForStablePosition(t *testing.T) {
	m := NewMonitor(t0)
	m.Process(Input{Snapshot: snap(3, 0, encoder.KindNone), Time: t0})

	for i := 1; i <= 5; i++ {
		events := m.Process(Input{Snapshot: snap(3, 0, encoder.KindNone), Time: t0.Add(time.Duration(i) * time.Second)})
		if len(events) != 0 {
			t.Fatalf("sample %d: expected no events, got %d", i, len(events))
		}
	}
}

func TestPositionEvent(t *testing.T) {
	m := NewMonitor(t0)
	m.Process(Input{Snapshot: snap(0, 0, encoder.KindNone), Time: t0})

	at := t0.Add(time.Second)
	events := m.Process(Input{Snapshot: snap(-4, 0, encoder.KindNone), Time: at})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventPosition {
		t.Errorf("expected POSITION, got %s", e.Type)
	}
	if e.Position != -4 || e.Delta != -4 {
		t.Errorf("expected position -4 delta -4, got %d %d", e.Position, e.Delta)
	}
	if e.Latency != 40*time.Microsecond {
		t.Errorf("expected latency 40µs, got %v", e.Latency)
	}
	if !e.Timestamp.Equal(at) {
		t.Errorf("expected timestamp %v, got %v", at, e.Timestamp)
	}

	events = m.Process(Input{Snapshot: snap(-1, 0, encoder.KindNone), Time: at.Add(time.Second)})
	if len(events) != 1 || events[0].Delta != 3 {
		t.Fatalf("expected delta 3, got %+v", events)
	}
	if m.Counts().Moves != 2 {
		t.Errorf("expected 2 moves, got %d", m.Counts().Moves)
	}
}

func TestErrorsReportedBeforeBaseline(t *testing.T) {
	m := NewMonitor(t0)

	events := m.Process(Input{Snapshot: snap(0, 2, encoder.KindIOFailure), Time: t0})
	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("expected one ERROR event, got %+v", events)
	}
	if events[0].Errors != 2 || events[0].LastError != encoder.KindIOFailure {
		t.Errorf("unexpected error event %+v", events[0])
	}
}

func TestPositionThenErrorOrdering(t *testing.T) {
	m := NewMonitor(t0)
	m.Process(Input{Snapshot: snap(0, 0, encoder.KindNone), Time: t0})

	events := m.Process(Input{Snapshot: snap(1, 1, encoder.KindProtocolViolation), Time: t0.Add(time.Second)})
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventPosition || events[1].Type != EventError {
		t.Errorf("expected POSITION then ERROR, got %s then %s", events[0].Type, events[1].Type)
	}
}

func TestCountsAccumulateByKind(t *testing.T) {
	m := NewMonitor(t0)
	inputs := []encoder.Snapshot{
		snap(0, 1, encoder.KindProtocolViolation),
		snap(0, 3, encoder.KindIOFailure),
		snap(0, 0, encoder.KindIOFailure),
		snap(0, 1, encoder.KindOverflow),
		snap(0, 2, encoder.KindProtocolViolation),
	}
	for i, s := range inputs {
		m.Process(Input{Snapshot: s, Time: t0.Add(time.Duration(i) * time.Second)})
	}

	want := Counts{Errors: 7, ProtocolViolations: 3, IOFailures: 3, Overflows: 1}
	if got := m.Counts(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	m := NewMonitor(t0)
	m.Process(Input{Snapshot: snap(0, 0, encoder.KindNone), Time: t0})

	if hb := m.CheckHeartbeat(t0.Add(time.Hour), 0); hb != nil {
		t.Error("expected nil heartbeat when disabled")
	}
	if hb := m.CheckHeartbeat(t0.Add(time.Hour), -time.Second); hb != nil {
		t.Error("expected nil heartbeat for negative interval")
	}
}

func TestCheckHeartbeatBeforeBaseline(t *testing.T) {
	m := NewMonitor(t0)
	if hb := m.CheckHeartbeat(t0.Add(time.Hour), time.Minute); hb != nil {
		t.Error("expected nil heartbeat before baseline")
	}
}

func TestCheckHeartbeatInterval(t *testing.T) {
	m := NewMonitor(t0)
	m.Process(Input{Snapshot: snap(0, 0, encoder.KindNone), Time: t0})
	m.Process(Input{Snapshot: snap(8, 1, encoder.KindProtocolViolation), Time: t0.Add(time.Second)})

	if hb := m.CheckHeartbeat(t0.Add(59*time.Second), time.Minute); hb != nil {
		t.Error("expected nil heartbeat before interval")
	}

	hb := m.CheckHeartbeat(t0.Add(time.Minute), time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != time.Minute {
		t.Errorf("expected uptime 1m, got %v", hb.Uptime)
	}
	if hb.Position != 8 {
		t.Errorf("expected position 8, got %d", hb.Position)
	}
	if hb.Counts.Moves != 1 || hb.Counts.ProtocolViolations != 1 {
		t.Errorf("unexpected counts %+v", hb.Counts)
	}

	if hb := m.CheckHeartbeat(t0.Add(90*time.Second), time.Minute); hb != nil {
		t.Error("interval should restart from the last heartbeat")
	}
	if hb := m.CheckHeartbeat(t0.Add(2*time.Minute), time.Minute); hb == nil {
		t.Error("expected second heartbeat")
	}
}
