//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")

// ChipOpener is not available on non-Linux platforms.
type ChipOpener struct{}

// NewChipOpener returns an opener whose Open always fails.
func NewChipOpener(chip string, bias Bias, debounce time.Duration) *ChipOpener {
	return &ChipOpener{}
}

// Open is not implemented on non-Linux platforms.
func (o *ChipOpener) Open(offset int) (Line, error) {
	return nil, errNotSupported
}

// SysfsOpener is not available on non-Linux platforms.
type SysfsOpener struct{}

// NewSysfsOpener returns an opener whose Open always fails.
func NewSysfsOpener() *SysfsOpener {
	return &SysfsOpener{}
}

// Open is not implemented on non-Linux platforms.
func (o *SysfsOpener) Open(offset int) (Line, error) {
	return nil, errNotSupported
}
