// Package encoder decodes a two-channel quadrature encoder into a signed
// position count.
//
// Launch claims both lines, seeds the decoder from their current levels and
// starts one reader goroutine. The goroutine blocks until either line has a
// pending edge, samples both lines, runs the decode step and commits the
// result under the state lock. Consumers call Snapshot from any goroutine to
// read the position, the latency of the last committed sample and the number
// of errors recorded since their previous read. Terminate stops the reader,
// waits for it to exit and releases both lines.
//
// Errors in the running loop are never returned to anyone: decode errors and
// I/O failures are counted, the most recent kind is latched, and the loop
// keeps counting. They are only visible through Snapshot, which drains the
// count.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sweeney/quadrature-encoder/internal/gpio"
	"github.com/sweeney/quadrature-encoder/internal/metrics"
)

// Phase is the lifecycle phase of an Encoder.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseRunning
	PhaseStopping
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Encoder is a running quadrature decoder. All methods are safe for
// concurrent use.
type Encoder struct {
	chanA, chanB int
	a, b         gpio.Line
	dec          *Decoder
	st           state
	opts         options
	log          *slog.Logger

	phase  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

// Launch opens chanA and chanB through opener and starts decoding. If any
// step fails, every line opened so far is closed, no goroutine is started and
// the returned error has kind KindIOFailure.
func Launch(opener gpio.Opener, chanA, chanB int, opts ...Option) (*Encoder, error) {
	if chanA == chanB {
		return nil, &Error{Kind: KindIOFailure, Op: "launch", Err: fmt.Errorf("channels A and B are both %d", chanA)}
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Encoder{
		chanA: chanA,
		chanB: chanB,
		opts:  o,
		log:   o.logger.With("chan_a", chanA, "chan_b", chanB),
		done:  make(chan struct{}),
	}
	e.phase.Store(int32(PhaseStarting))

	a, err := opener.Open(chanA)
	if err != nil {
		return nil, launchErr(fmt.Errorf("open channel A: %w", err))
	}
	b, err := opener.Open(chanB)
	if err != nil {
		a.Close()
		return nil, launchErr(fmt.Errorf("open channel B: %w", err))
	}
	e.a, e.b = a, b

	seed, err := e.sample()
	if err != nil {
		a.Close()
		b.Close()
		return nil, launchErr(fmt.Errorf("initial sample: %w", err))
	}
	e.dec = NewDecoder(seed)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.run(ctx)

	e.phase.Store(int32(PhaseRunning))
	e.opts.recorder.SetRunning(true)
	e.log.Info("encoder started", "a", seed.A, "b", seed.B)
	return e, nil
}

func launchErr(err error) error {
	return &Error{Kind: KindIOFailure, Op: "launch", Err: err}
}

// Channels returns the line offsets for channels A and B.
func (e *Encoder) Channels() (int, int) {
	return e.chanA, e.chanB
}

// Phase returns the current lifecycle phase.
func (e *Encoder) Phase() Phase {
	return Phase(e.phase.Load())
}

// Snapshot returns the position, the latency of the last committed sample
// and the errors recorded since the previous Snapshot. The error count is
// reset by this call, so concurrent callers each see a disjoint share of the
// errors. It fails with ErrNotRunning once Terminate has been called.
func (e *Encoder) Snapshot() (Snapshot, error) {
	if e.Phase() != PhaseRunning {
		return Snapshot{}, &Error{Kind: KindLifecycle, Op: "snapshot", Err: ErrNotRunning}
	}
	return e.st.drain(), nil
}

// Terminate stops the reader loop, waits for it to exit and closes both
// lines. A blocked edge wait is interrupted immediately. Close failures are
// returned with kind KindIOFailure. Calling Terminate again returns
// ErrNotRunning.
func (e *Encoder) Terminate() error {
	if !e.phase.CompareAndSwap(int32(PhaseRunning), int32(PhaseStopping)) {
		return &Error{Kind: KindLifecycle, Op: "terminate", Err: ErrNotRunning}
	}
	e.cancel()
	<-e.done

	err := errors.Join(e.a.Close(), e.b.Close())
	e.phase.Store(int32(PhaseStopped))
	e.opts.recorder.SetRunning(false)
	if err != nil {
		e.log.Warn("encoder stopped with errors", "error", err)
		return &Error{Kind: KindIOFailure, Op: "terminate", Err: err}
	}
	e.log.Info("encoder stopped")
	return nil
}

// run is the reader loop. Cancellation is only observed while waiting for
// an edge, so a commit in progress always completes and the state lock is
// never held when the loop exits.
func (e *Encoder) run(ctx context.Context) {
	defer close(e.done)

	if e.opts.priority > 0 {
		if err := setRealtime(e.opts.priority); err != nil {
			e.log.Warn("running without real-time priority", "error", err)
		}
	}

	failures := 0
	for {
		err := gpio.WaitEither(ctx, e.a, e.b)
		woke := e.opts.now()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			e.record(KindIOFailure, err, woke)
			if failures == 0 {
				e.log.Warn("edge wait failing", "error", err)
			}
			failures++
			if !e.pause(ctx) {
				return
			}
			continue
		}
		if failures > 0 {
			e.log.Info("edge wait recovered", "failures", failures)
			failures = 0
		}
		e.step(woke)
	}
}

// step samples both lines and applies one decode step.
func (e *Encoder) step(woke time.Time) {
	s, err := e.sample()
	if err != nil {
		e.record(KindIOFailure, err, woke)
		return
	}
	delta, err := e.dec.Decode(s)
	if err != nil {
		e.record(KindProtocolViolation, err, woke)
		return
	}
	if delta == 0 {
		e.opts.recorder.IncWake(metrics.WakeSpurious)
		return
	}

	pos, latency, overflow := e.st.commit(delta, woke, e.opts.now)
	e.opts.recorder.IncWake(metrics.WakeEdge)
	e.opts.recorder.ObserveStep(delta, pos, latency)
	if overflow {
		e.opts.recorder.IncError(KindOverflow.String())
		e.log.Error("position overflow", "position", pos)
	}
}

func (e *Encoder) sample() (Sample, error) {
	a, err := e.a.Level()
	if err != nil {
		return Sample{}, err
	}
	b, err := e.b.Level()
	if err != nil {
		return Sample{}, err
	}
	return Sample{A: a, B: b}, nil
}

func (e *Encoder) record(kind ErrorKind, cause error, woke time.Time) {
	e.st.fail(kind, cause, woke, e.opts.now)
	e.opts.recorder.IncError(kind.String())
	e.log.Debug("encoder error", "kind", kind, "error", cause)
}

// pause sleeps for the failure backoff. It returns false if ctx is done.
func (e *Encoder) pause(ctx context.Context) bool {
	if e.opts.backoff <= 0 {
		return true
	}
	t := time.NewTimer(e.opts.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
