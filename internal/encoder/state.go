package encoder

import (
	"sync"
	"time"
)

// Snapshot is a consistent copy of the encoder state. Errors is the number
// of errors recorded since the previous Snapshot call; LastError and Cause
// identify only the most recent one.
type Snapshot struct {
	Position  int64
	Latency   time.Duration
	Errors    uint64
	LastError ErrorKind
	Cause     error
}

// state is written by the reader loop and read by Snapshot, always under mu.
type state struct {
	mu        sync.Mutex
	position  int64
	latency   time.Duration
	errCount  uint64
	lastErr   ErrorKind
	lastCause error
}

// commit applies one step and stamps the latency from woke in the same
// critical section, so readers never see a position paired with another
// sample's latency. A wrap past the int64 range is recorded as an overflow.
func (s *state) commit(delta int, woke time.Time, now func() time.Time) (int64, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.position + int64(delta)
	overflow := (delta > 0 && next < s.position) || (delta < 0 && next > s.position)
	s.position = next
	if overflow {
		s.errCount++
		s.lastErr = KindOverflow
		s.lastCause = ErrOverflow
	}
	s.latency = now().Sub(woke)
	return s.position, s.latency, overflow
}

// fail records an error. The position is left untouched.
func (s *state) fail(kind ErrorKind, cause error, woke time.Time, now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errCount++
	s.lastErr = kind
	s.lastCause = cause
	s.latency = now().Sub(woke)
}

// drain copies the state and resets the error count. Only the count is
// drained: the position and the latched last error are kept.
func (s *state) drain() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Position:  s.position,
		Latency:   s.latency,
		Errors:    s.errCount,
		LastError: s.lastErr,
		Cause:     s.lastCause,
	}
	s.errCount = 0
	return snap
}
