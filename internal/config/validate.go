package config

import (
	"fmt"

	"github.com/sweeney/quadrature-encoder/internal/gpio"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	g := cfg.GPIO
	switch g.Backend {
	case BackendCdev:
		if g.Chip == "" {
			return fmt.Errorf("gpio: chip is required for the cdev backend")
		}
	case BackendSysfs:
	default:
		return fmt.Errorf("gpio: unknown backend %q", g.Backend)
	}
	if g.ChanA < 0 || g.ChanB < 0 {
		return fmt.Errorf("gpio: channel offsets must not be negative (a=%d b=%d)", g.ChanA, g.ChanB)
	}
	if g.ChanA == g.ChanB {
		return fmt.Errorf("gpio: chan_a and chan_b must differ (both %d)", g.ChanA)
	}
	switch g.Bias {
	case gpio.BiasNone, gpio.BiasPullUp, gpio.BiasPullDown:
	default:
		return fmt.Errorf("gpio: unknown bias %q", g.Bias)
	}
	if g.Debounce < 0 {
		return fmt.Errorf("gpio: debounce must not be negative")
	}
	if g.Debounce > 0 && g.Backend == BackendSysfs {
		return fmt.Errorf("gpio: debounce is only supported by the cdev backend")
	}

	if cfg.Encoder.Priority < 0 || cfg.Encoder.Priority > 99 {
		return fmt.Errorf("encoder: priority %d out of range 0..99", cfg.Encoder.Priority)
	}
	if cfg.Encoder.FailureBackoff < 0 {
		return fmt.Errorf("encoder: failure_backoff must not be negative")
	}

	if cfg.Monitor.Poll <= 0 {
		return fmt.Errorf("monitor: poll must be positive")
	}
	if cfg.Monitor.Heartbeat < 0 {
		return fmt.Errorf("monitor: heartbeat must not be negative")
	}

	p := cfg.Publish
	switch p.Sink {
	case SinkMQTT, SinkNATS:
		if p.Broker == "" {
			return fmt.Errorf("publish: broker is required for sink %q", p.Sink)
		}
		if p.TopicPrefix == "" {
			return fmt.Errorf("publish: topic_prefix is required for sink %q", p.Sink)
		}
	case SinkNone:
	default:
		return fmt.Errorf("publish: unknown sink %q", p.Sink)
	}
	if p.Buffer < 0 {
		return fmt.Errorf("publish: buffer must not be negative")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", cfg.Log.Format)
	}
	return nil
}
