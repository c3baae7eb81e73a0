package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// FakeLine is a test double with a settable level and injectable edges.
// It is safe for concurrent use.
type FakeLine struct {
	offset int
	n      *notifier

	mu        sync.Mutex
	level     int
	readErr   error
	reads     int
	closed    bool
	closeErr  error
	onLevelFn func()
}

// NewFakeLine creates an open FakeLine at the given level.
func NewFakeLine(offset, level int) *FakeLine {
	return &FakeLine{offset: offset, level: level, n: newNotifier()}
}

func (f *FakeLine) Offset() int { return f.offset }

// Level returns the scripted level, or the configured read error.
func (f *FakeLine) Level() (int, error) {
	f.mu.Lock()
	f.reads++
	hook := f.onLevelFn
	level, err := f.level, f.readErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return 0, err
	}
	return level, nil
}

func (f *FakeLine) Edges() <-chan Edge { return f.n.ch }

// SetLevel changes the level without signalling an edge.
func (f *FakeLine) SetLevel(v int) {
	f.mu.Lock()
	f.level = v
	f.mu.Unlock()
}

// Set changes the level and signals an edge.
func (f *FakeLine) Set(v int) {
	f.SetLevel(v)
	f.Pulse()
}

// Pulse signals an edge without changing the level.
func (f *FakeLine) Pulse() {
	f.n.signal(Edge{})
}

// Fail signals a backend failure.
func (f *FakeLine) Fail(err error) {
	f.n.signal(Edge{Err: err})
}

// SetReadError makes subsequent Level calls fail with err (nil clears it).
func (f *FakeLine) SetReadError(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

// SetCloseError makes Close return err.
func (f *FakeLine) SetCloseError(err error) {
	f.mu.Lock()
	f.closeErr = err
	f.mu.Unlock()
}

// OnLevel installs a hook run after every Level call.
func (f *FakeLine) OnLevel(fn func()) {
	f.mu.Lock()
	f.onLevelFn = fn
	f.mu.Unlock()
}

// Reads returns how many times Level has been called.
func (f *FakeLine) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Closed reports whether Close has been called.
func (f *FakeLine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close marks the line closed and closes its edge channel.
func (f *FakeLine) Close() error {
	f.mu.Lock()
	already := f.closed
	f.closed = true
	err := f.closeErr
	f.mu.Unlock()

	if already {
		return nil
	}
	f.n.close()
	return err
}

// FakeOpener hands out FakeLines by offset.
type FakeOpener struct {
	mu       sync.Mutex
	lines    map[int]*FakeLine
	openErrs map[int]error
	opened   []int
}

// NewFakeOpener creates a FakeOpener. Lines not added with Add are created
// at level 0 on first Open.
func NewFakeOpener() *FakeOpener {
	return &FakeOpener{
		lines:    make(map[int]*FakeLine),
		openErrs: make(map[int]error),
	}
}

// Add registers a line to be returned for its offset.
func (o *FakeOpener) Add(l *FakeLine) *FakeLine {
	o.mu.Lock()
	o.lines[l.offset] = l
	o.mu.Unlock()
	return l
}

// FailOpen makes Open(offset) return err.
func (o *FakeOpener) FailOpen(offset int, err error) {
	o.mu.Lock()
	o.openErrs[offset] = err
	o.mu.Unlock()
}

// Line returns the line for offset, or nil if it was never added or opened.
func (o *FakeOpener) Line(offset int) *FakeLine {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lines[offset]
}

// Opened returns the offsets successfully opened, in order.
func (o *FakeOpener) Opened() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.opened...)
}

func (o *FakeOpener) Open(offset int) (Line, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.openErrs[offset]; err != nil {
		return nil, fmt.Errorf("request line %d: %w", offset, err)
	}
	l, ok := o.lines[offset]
	if !ok {
		l = NewFakeLine(offset, 0)
		o.lines[offset] = l
	}
	if l.Closed() {
		return nil, fmt.Errorf("request line %d: %w", offset, errBusy)
	}
	o.opened = append(o.opened, offset)
	return l, nil
}

var errBusy = errors.New("line already released")
