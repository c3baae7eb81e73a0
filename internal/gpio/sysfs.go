//go:build linux

package gpio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// SysfsBase is the legacy sysfs GPIO directory.
const SysfsBase = "/sys/class/gpio"

const verifyTimeout = 2 * time.Second

// SysfsOpener exports lines through the legacy sysfs interface and waits
// for edges with poll(2) on the value file.
type SysfsOpener struct {
	Base string

	// Verify waits for exported files to become writable. Needed when not
	// running as root: udev changes the group permissions on newly exported
	// files some time after the export completes.
	Verify bool
}

// NewSysfsOpener creates an opener rooted at SysfsBase. Verify is enabled
// when the process is not running as root.
func NewSysfsOpener() *SysfsOpener {
	return &SysfsOpener{Base: SysfsBase, Verify: os.Geteuid() != 0}
}

// Open exports offset, sets it as an input with edge detection on both edges
// and starts its poll loop.
func (o *SysfsOpener) Open(offset int) (Line, error) {
	dir := filepath.Join(o.Base, fmt.Sprintf("gpio%d", offset))
	valuePath := filepath.Join(dir, "value")

	if err := o.export(valuePath, offset); err != nil {
		return nil, fmt.Errorf("export line %d: %w", offset, err)
	}
	fail := func(err error) (Line, error) {
		o.unexport(offset)
		return nil, err
	}
	if err := writeFile(filepath.Join(dir, "direction"), "in"); err != nil {
		return fail(fmt.Errorf("set direction of line %d: %w", offset, err))
	}
	if err := writeFile(filepath.Join(dir, "edge"), "both"); err != nil {
		return fail(fmt.Errorf("set edge of line %d: %w", offset, err))
	}
	value, err := os.OpenFile(valuePath, os.O_RDONLY, 0)
	if err != nil {
		return fail(fmt.Errorf("open value of line %d: %w", offset, err))
	}
	wake, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		value.Close()
		return fail(fmt.Errorf("eventfd for line %d: %w", offset, err))
	}

	l := &sysfsLine{
		offset: offset,
		opener: o,
		value:  value,
		wake:   wake,
		n:      newNotifier(),
		done:   make(chan struct{}),
	}
	// Reading the value clears the pending priority event left by the export.
	if _, err := l.Level(); err != nil {
		l.release()
		return nil, err
	}
	go l.poll()
	return l, nil
}

func (o *SysfsOpener) export(valuePath string, offset int) error {
	if unix.Access(valuePath, unix.W_OK|unix.R_OK) == nil {
		return nil
	}
	if err := writeFile(filepath.Join(o.Base, "export"), strconv.Itoa(offset)); err != nil {
		return err
	}
	if o.Verify {
		return verifyFile(valuePath)
	}
	return nil
}

func (o *SysfsOpener) unexport(offset int) error {
	return writeFile(filepath.Join(o.Base, "unexport"), strconv.Itoa(offset))
}

type sysfsLine struct {
	offset int
	opener *SysfsOpener
	value  *os.File
	wake   int
	n      *notifier
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (l *sysfsLine) Offset() int { return l.offset }

func (l *sysfsLine) Level() (int, error) {
	buf := make([]byte, 1)
	if _, err := l.value.ReadAt(buf, 0); err != nil {
		return 0, fmt.Errorf("read line %d: %w", l.offset, err)
	}
	switch buf[0] {
	case '0':
		return 0, nil
	case '1':
		return 1, nil
	}
	return 0, fmt.Errorf("line %d: unknown value %q", l.offset, buf)
}

func (l *sysfsLine) Edges() <-chan Edge { return l.n.ch }

// poll waits on the value file and the wake eventfd together. A write to
// the eventfd is the shutdown signal.
func (l *sysfsLine) poll() {
	defer close(l.done)
	fds := []unix.PollFd{
		{Fd: int32(l.value.Fd()), Events: unix.POLLPRI | unix.POLLERR},
		{Fd: int32(l.wake), Events: unix.POLLIN},
	}
	for {
		fds[0].Revents = 0
		fds[1].Revents = 0
		_, err := unix.Poll(fds, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			l.n.signal(Edge{Err: err})
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if fds[1].Revents != 0 {
			return
		}
		if fds[0].Revents&(unix.POLLPRI|unix.POLLERR) != 0 {
			if _, err := l.Level(); err != nil {
				l.n.signal(Edge{Err: err})
				continue
			}
			l.n.signal(Edge{})
		}
	}
}

func (l *sysfsLine) Close() error {
	l.closeOnce.Do(func() {
		var one [8]byte
		binary.NativeEndian.PutUint64(one[:], 1)
		if _, err := unix.Write(l.wake, one[:]); err != nil {
			l.closeErr = fmt.Errorf("wake poll loop of line %d: %w", l.offset, err)
			return
		}
		<-l.done
		l.closeErr = l.release()
	})
	return l.closeErr
}

func (l *sysfsLine) release() error {
	var errs []error
	if err := l.value.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close value of line %d: %w", l.offset, err))
	}
	if err := unix.Close(l.wake); err != nil {
		errs = append(errs, fmt.Errorf("close eventfd of line %d: %w", l.offset, err))
	}
	if err := l.opener.unexport(l.offset); err != nil {
		errs = append(errs, fmt.Errorf("unexport line %d: %w", l.offset, err))
	}
	l.n.close()
	return errors.Join(errs...)
}

func writeFile(name, s string) error {
	f, err := os.OpenFile(name, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(s))
	return err
}

// verifyFile waits for f to become writable.
func verifyFile(f string) error {
	sl := time.Millisecond
	for tout := time.Duration(0); tout < verifyTimeout; tout += sl {
		if unix.Access(f, unix.W_OK) == nil {
			return nil
		}
		time.Sleep(sl)
	}
	return fmt.Errorf("%s: not writable", f)
}
