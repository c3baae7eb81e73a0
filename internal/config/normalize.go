package config

import (
	"strings"

	"github.com/sweeney/quadrature-encoder/internal/gpio"
)

// Normalize lower-cases enumerated values and trims the topic prefix.
// It runs before Validate.
func Normalize(cfg *Config) {
	cfg.GPIO.Backend = strings.ToLower(strings.TrimSpace(cfg.GPIO.Backend))
	cfg.GPIO.Bias = gpio.Bias(strings.ToLower(strings.TrimSpace(string(cfg.GPIO.Bias))))
	if cfg.GPIO.Bias == "" {
		cfg.GPIO.Bias = gpio.BiasNone
	}
	cfg.Publish.Sink = strings.ToLower(strings.TrimSpace(cfg.Publish.Sink))
	if cfg.Publish.Sink == "" {
		cfg.Publish.Sink = SinkNone
	}
	cfg.Publish.TopicPrefix = strings.Trim(strings.TrimSpace(cfg.Publish.TopicPrefix), "/")
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
}
