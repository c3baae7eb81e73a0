// Package config loads the encoder-monitor configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/quadrature-encoder/internal/encoder"
	"github.com/sweeney/quadrature-encoder/internal/gpio"
)

// Backend names.
const (
	BackendCdev  = "cdev"
	BackendSysfs = "sysfs"
)

// Sink names.
const (
	SinkMQTT = "mqtt"
	SinkNATS = "nats"
	SinkNone = "none"
)

type Config struct {
	GPIO    GPIOConfig    `yaml:"gpio"`
	Encoder EncoderConfig `yaml:"encoder"`
	Monitor MonitorConfig `yaml:"monitor"`
	Publish PublishConfig `yaml:"publish"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
}

// ---- GPIO ----

type GPIOConfig struct {
	Backend  string        `yaml:"backend"`
	Chip     string        `yaml:"chip"`
	ChanA    int           `yaml:"chan_a"`
	ChanB    int           `yaml:"chan_b"`
	Bias     gpio.Bias     `yaml:"bias"`
	Debounce time.Duration `yaml:"debounce"`
}

// ---- ENCODER ----

type EncoderConfig struct {
	// Priority is the SCHED_FIFO priority of the reader thread; 0 disables.
	Priority       int           `yaml:"priority"`
	FailureBackoff time.Duration `yaml:"failure_backoff"`
}

// ---- MONITOR ----

type MonitorConfig struct {
	Poll      time.Duration `yaml:"poll"`
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
}

// ---- PUBLISH ----

type PublishConfig struct {
	Sink        string `yaml:"sink"`
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
	Buffer      int    `yaml:"buffer"` // messages held while disconnected
}

// ---- HTTP / LOG ----

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		GPIO: GPIOConfig{
			Backend: BackendCdev,
			Chip:    "gpiochip0",
			ChanA:   gpio.DefaultPinA,
			ChanB:   gpio.DefaultPinB,
			Bias:    gpio.BiasPullUp,
		},
		Encoder: EncoderConfig{
			Priority:       encoder.DefaultPriority,
			FailureBackoff: encoder.DefaultFailureBackoff,
		},
		Monitor: MonitorConfig{
			Poll:      500 * time.Millisecond,
			Heartbeat: 15 * time.Minute,
		},
		Publish: PublishConfig{
			Sink:        SinkMQTT,
			Broker:      "tcp://localhost:1883",
			TopicPrefix: "encoder/quadrature",
			ClientID:    "encoder-monitor",
			Buffer:      100,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, normalizes and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	Normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
