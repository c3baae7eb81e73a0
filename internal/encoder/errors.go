package encoder

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the class of an encoder error.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindIOFailure is a failure acquiring, configuring, reading or waiting
	// on a line. Fatal at launch, counted while running.
	KindIOFailure
	// KindProtocolViolation means both channels changed between two samples,
	// so the transitions cannot be ordered. Counted, never fatal.
	KindProtocolViolation
	// KindOverflow means the position wrapped around int64.
	KindOverflow
	// KindLifecycle is an operation on an encoder that is not running.
	KindLifecycle
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindIOFailure:
		return "io_failure"
	case KindProtocolViolation:
		return "protocol_violation"
	case KindOverflow:
		return "overflow"
	case KindLifecycle:
		return "lifecycle"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	// ErrNotRunning is returned by operations on an encoder that has been
	// terminated.
	ErrNotRunning = errors.New("encoder not running")

	// ErrProtocolViolation is the cause recorded when both channels change
	// between consecutive samples.
	ErrProtocolViolation = errors.New("both channels changed between samples")

	// ErrOverflow is the cause recorded when the position wraps.
	ErrOverflow = errors.New("position overflow")
)

// Error is returned by Launch, Snapshot and Terminate.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("encoder: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or KindNone.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
