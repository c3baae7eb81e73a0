//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// ChipOpener requests lines from a Linux GPIO character device.
type ChipOpener struct {
	// Chip is the chip name ("gpiochip0") or device path.
	Chip     string
	Consumer string
	Bias     Bias
	Debounce time.Duration
}

// NewChipOpener creates an opener for the named chip.
func NewChipOpener(chip string, bias Bias, debounce time.Duration) *ChipOpener {
	return &ChipOpener{
		Chip:     chip,
		Consumer: "quadrature-encoder",
		Bias:     bias,
		Debounce: debounce,
	}
}

// Open requests offset as an input with edge detection on both edges.
func (o *ChipOpener) Open(offset int) (Line, error) {
	l := &cdevLine{offset: offset, bias: o.Bias, n: newNotifier()}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithConsumer(o.Consumer),
		gpiocdev.WithEventHandler(l.handle),
	}
	if bo := biasOption(o.Bias); bo != nil {
		opts = append(opts, bo)
	}
	if o.Debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(o.Debounce))
	}

	line, err := gpiocdev.RequestLine(o.Chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request line %d on %s: %w", offset, o.Chip, err)
	}
	l.line = line
	return l, nil
}

func biasOption(b Bias) gpiocdev.LineReqOption {
	switch b {
	case BiasPullUp:
		return gpiocdev.WithPullUp
	case BiasPullDown:
		return gpiocdev.WithPullDown
	}
	return nil
}

type cdevLine struct {
	offset int
	bias   Bias
	line   *gpiocdev.Line
	n      *notifier

	closeOnce sync.Once
	closeErr  error
}

// handle runs on the gpiocdev watcher goroutine.
func (l *cdevLine) handle(gpiocdev.LineEvent) {
	l.n.signal(Edge{})
}

func (l *cdevLine) Offset() int { return l.offset }

func (l *cdevLine) Level() (int, error) {
	v, err := l.line.Value()
	if err != nil {
		return 0, fmt.Errorf("read line %d: %w", l.offset, err)
	}
	return v, nil
}

func (l *cdevLine) Edges() <-chan Edge { return l.n.ch }

// Close drops edge detection before releasing the line so the pin is left
// as a plain input, matching the Pi boot defaults.
func (l *cdevLine) Close() error {
	l.closeOnce.Do(func() {
		var errs []error
		opts := []gpiocdev.LineConfigOption{gpiocdev.AsInput, gpiocdev.WithoutEdges}
		if l.bias == BiasPullUp {
			opts = append(opts, gpiocdev.WithPullUp)
		} else if l.bias == BiasPullDown {
			opts = append(opts, gpiocdev.WithPullDown)
		}
		if err := l.line.Reconfigure(opts...); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", l.offset, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", l.offset, err))
		}
		l.n.close()
		l.closeErr = errors.Join(errs...)
	})
	return l.closeErr
}
