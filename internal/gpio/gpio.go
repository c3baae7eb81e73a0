// Package gpio provides edge-notifying GPIO input lines with hardware abstraction.
// The real implementations use the Linux GPIO character device or the legacy
// sysfs interface. The fake implementation allows testing without hardware.
package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrClosed is returned when waiting on a line that has been closed.
	ErrClosed = errors.New("gpio: line closed")

	// ErrIO wraps failures reported by a backend while waiting for edges.
	ErrIO = errors.New("gpio: i/o failure")
)

// Edge is a single notification from a line. A nil Err means at least one
// edge is pending; a non-nil Err is a failure observed by the backend.
type Edge struct {
	Err error
}

// Line is one input line configured for rising and falling edge notification.
type Line interface {
	// Offset returns the line number the line was opened with.
	Offset() int

	// Level returns the current logical level (0 or 1) without blocking.
	Level() (int, error)

	// Edges returns the notification channel. Notifications coalesce: a
	// pending notification stands for any number of edges since it was sent.
	// The channel is closed when the line is closed.
	Edges() <-chan Edge

	// Close releases the line. Calling Close more than once is safe.
	Close() error
}

// Opener claims lines by offset.
type Opener interface {
	Open(offset int) (Line, error)
}

// Default pins (BCM numbering) for channels A and B.
const (
	DefaultPinA = 23
	DefaultPinB = 24
)

// Bias selects the internal pull applied to an input line.
type Bias string

const (
	BiasNone     Bias = "none"
	BiasPullUp   Bias = "pull-up"
	BiasPullDown Bias = "pull-down"
)

// WaitEither blocks until a or b has a pending edge. It returns nil on an
// edge, an error wrapping ErrIO if a backend reported a failure, ErrClosed
// if either line was closed, or ctx.Err() once ctx is done. Which line
// fired is not reported; callers re-sample both.
func WaitEither(ctx context.Context, a, b Line) error {
	var e Edge
	var ok bool
	var which Line
	select {
	case <-ctx.Done():
		return ctx.Err()
	case e, ok = <-a.Edges():
		which = a
	case e, ok = <-b.Edges():
		which = b
	}
	if !ok {
		return fmt.Errorf("line %d: %w", which.Offset(), ErrClosed)
	}
	if e.Err != nil {
		return fmt.Errorf("line %d: %w: %w", which.Offset(), ErrIO, e.Err)
	}
	return nil
}

// notifier is the coalescing edge channel shared by all backends.
type notifier struct {
	mu     sync.Mutex
	ch     chan Edge
	closed bool
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan Edge, 1)}
}

// signal queues e unless a notification is already pending. Errors replace
// a pending edge so failures are not swallowed by coalescing.
func (n *notifier) signal(e Edge) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.ch <- e:
		return
	default:
	}
	if e.Err == nil {
		return
	}
	select {
	case <-n.ch:
	default:
	}
	n.ch <- e
}

func (n *notifier) close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.ch)
	}
	n.mu.Unlock()
}
