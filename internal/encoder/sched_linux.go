//go:build linux

package encoder

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// setRealtime moves the calling goroutine's thread to SCHED_FIFO. On
// success the thread stays locked for the rest of the goroutine: when a
// locked goroutine exits the runtime destroys the thread, so a real-time
// thread is never handed back to the scheduler.
func setRealtime(priority int) error {
	runtime.LockOSThread()
	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("sched_setattr SCHED_FIFO priority %d: %w", priority, err)
	}
	return nil
}
