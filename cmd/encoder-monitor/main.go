// Command encoder-monitor decodes a quadrature encoder on two GPIO lines and
// publishes position changes and decode errors to a message broker.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sweeney/quadrature-encoder/internal/config"
	"github.com/sweeney/quadrature-encoder/internal/encoder"
	"github.com/sweeney/quadrature-encoder/internal/gpio"
	"github.com/sweeney/quadrature-encoder/internal/metrics"
	"github.com/sweeney/quadrature-encoder/internal/publish"
	"github.com/sweeney/quadrature-encoder/internal/status"
	"github.com/sweeney/quadrature-encoder/internal/web"
)

// networkEnvFile is written by pi-helper.
const networkEnvFile = "/run/pi-helper.env"

var CLI struct {
	Config  string `short:"c" help:"Configuration file path (built-in defaults when empty)" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Backend string `help:"Override gpio.backend (cdev or sysfs)"`
	Chip    string `help:"Override gpio.chip"`
	ChanA   int    `name:"chan-a" help:"Override gpio.chan_a" default:"-1"`
	ChanB   int    `name:"chan-b" help:"Override gpio.chan_b" default:"-1"`
	Sink    string `help:"Override publish.sink (mqtt, nats or none)"`
	Broker  string `help:"Override publish.broker"`
	HTTP    string `name:"http" help:"Override http.addr"`

	Run struct{} `cmd:"" default:"1" help:"Decode continuously and publish events (default)"`

	Read struct {
		Wait  time.Duration `help:"How long to count before printing" default:"1s"`
		Count int           `help:"Number of readings to print" default:"1"`
	} `cmd:"" help:"Print the position after a short wait and exit"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("encoder-monitor"),
		kong.Description("Quadrature encoder decoder and publisher."),
	)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoder-monitor: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(os.Stdout, cfg.Log, CLI.Verbose)
	slog.SetDefault(logger)

	switch kctx.Command() {
	case "read":
		err = runRead(cfg, logger, os.Stdout, CLI.Read.Wait, CLI.Read.Count)
	default:
		err = run(cfg, logger)
	}
	if err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, then applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if CLI.Config != "" {
		var err error
		if cfg, err = config.Load(CLI.Config); err != nil {
			return cfg, err
		}
	}

	if CLI.Backend != "" {
		cfg.GPIO.Backend = CLI.Backend
	}
	if CLI.Chip != "" {
		cfg.GPIO.Chip = CLI.Chip
	}
	if CLI.ChanA >= 0 {
		cfg.GPIO.ChanA = CLI.ChanA
	}
	if CLI.ChanB >= 0 {
		cfg.GPIO.ChanB = CLI.ChanB
	}
	if CLI.Sink != "" {
		cfg.Publish.Sink = CLI.Sink
	}
	if CLI.Broker != "" {
		cfg.Publish.Broker = CLI.Broker
	}
	if CLI.HTTP != "" {
		cfg.HTTP.Addr = CLI.HTTP
	}

	config.Normalize(&cfg)
	if err := config.Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, lc config.LogConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newOpener(g config.GPIOConfig) gpio.Opener {
	if g.Backend == config.BackendSysfs {
		return gpio.NewSysfsOpener()
	}
	return gpio.NewChipOpener(g.Chip, g.Bias, g.Debounce)
}

func launch(cfg config.Config, logger *slog.Logger, rec metrics.Recorder) (*encoder.Encoder, error) {
	return encoder.Launch(newOpener(cfg.GPIO), cfg.GPIO.ChanA, cfg.GPIO.ChanB,
		encoder.WithLogger(logger),
		encoder.WithRecorder(rec),
		encoder.WithPriority(cfg.Encoder.Priority),
		encoder.WithFailureBackoff(cfg.Encoder.FailureBackoff),
	)
}

// sink is a publisher that can also report its connection state.
type sink interface {
	publish.Publisher
	publish.ConnectionStatus
}

func newPublisher(p config.PublishConfig, logger *slog.Logger) (sink, error) {
	topics := publish.NewTopics(p.TopicPrefix)
	switch p.Sink {
	case config.SinkMQTT:
		return publish.NewMQTTPublisher(publish.MQTTOptions{
			Broker:   p.Broker,
			ClientID: p.ClientID,
			Topics:   topics,
			Buffer:   p.Buffer,
			Logger:   logger,
		})
	case config.SinkNATS:
		return publish.NewNATSPublisher(publish.NATSOptions{
			URL:    p.Broker,
			Name:   p.ClientID,
			Topics: topics,
			Logger: logger,
		})
	}
	return publish.Discard{}, nil
}

func run(cfg config.Config, logger *slog.Logger) error {
	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewPrometheusRecorder(reg)

	enc, err := launch(cfg, logger, rec)
	if err != nil {
		return fmt.Errorf("launch encoder: %w", err)
	}
	defer func() {
		if err := enc.Terminate(); err != nil {
			logger.Warn("terminate encoder", "error", err)
		}
	}()

	publisher, err := newPublisher(cfg.Publish, logger)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), uuid.NewString(), status.Config{
		Backend:     cfg.GPIO.Backend,
		Chip:        cfg.GPIO.Chip,
		ChanA:       cfg.GPIO.ChanA,
		ChanB:       cfg.GPIO.ChanB,
		Priority:    cfg.Encoder.Priority,
		PollMs:      cfg.Monitor.Poll.Milliseconds(),
		HeartbeatMs: cfg.Monitor.Heartbeat.Milliseconds(),
		Sink:        cfg.Publish.Sink,
		Broker:      cfg.Publish.Broker,
		TopicPrefix: cfg.Publish.TopicPrefix,
		HTTPAddr:    cfg.HTTP.Addr,
	})
	tracker.SetPhase(enc.Phase())
	tracker.SetBrokerConnected(publisher.IsConnected())
	if net := readNetworkInfo(networkEnvFile); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startup := publish.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Warn("failed to publish startup event", "error", err)
	} else {
		logger.Info("published startup event", "session", snap.SessionID)
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, metrics.HTTPHandler(reg))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		logger.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	logger.Info("started",
		"backend", cfg.GPIO.Backend,
		"chan_a", cfg.GPIO.ChanA,
		"chan_b", cfg.GPIO.ChanB,
		"poll", cfg.Monitor.Poll,
		"heartbeat", cfg.Monitor.Heartbeat,
		"sink", cfg.Publish.Sink)

	ticker := time.NewTicker(cfg.Monitor.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(logger, enc, publisher, publisher, tracker, cfg.Monitor.Heartbeat, networkEnvFile, time.Now, ticker.C, sigCh)
}
