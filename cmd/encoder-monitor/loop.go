package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweeney/quadrature-encoder/internal/config"
	"github.com/sweeney/quadrature-encoder/internal/encoder"
	"github.com/sweeney/quadrature-encoder/internal/monitor"
	"github.com/sweeney/quadrature-encoder/internal/publish"
	"github.com/sweeney/quadrature-encoder/internal/status"
)

// snapshotter is the part of *encoder.Encoder the loops use.
type snapshotter interface {
	Snapshot() (encoder.Snapshot, error)
	Phase() encoder.Phase
}

func runLoop(log *slog.Logger, enc snapshotter, publisher publish.Publisher, conn publish.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, networkEnv string, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	mon := monitor.NewMonitor(now())

	// poll drains one snapshot, publishes what changed and refreshes the tracker.
	poll := func(t time.Time) {
		snap, err := enc.Snapshot()
		if err != nil {
			log.Warn("encoder snapshot failed", "error", err)
			return
		}

		for _, event := range mon.Process(monitor.Input{Snapshot: snap, Time: t}) {
			if event.Type == monitor.EventError {
				log.Warn("encoder errors", "count", event.Errors, "kind", event.LastError, "position", event.Position)
			} else {
				log.Debug("position", "position", event.Position, "delta", event.Delta, "latency", event.Latency)
			}
			if err := publisher.Publish(event); err != nil {
				// Don't crash on publish failure
				log.Warn("publish error", "error", err)
			}
		}

		tracker.Update(snap, mon.IsBaselined(), mon.Counts())
		tracker.SetPhase(enc.Phase())
		if conn != nil {
			tracker.SetBrokerConnected(conn.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			name := signalName(s)
			log.Info("shutting down", "signal", name)

			// Pick up anything counted since the last tick.
			poll(now())

			snap := tracker.Snapshot()
			event := publish.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     name,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", name),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warn("failed to publish shutdown event", "error", err)
			} else {
				log.Info("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			poll(t)

			hb := mon.CheckHeartbeat(t, heartbeat)
			if hb == nil {
				continue
			}
			log.Info("heartbeat",
				"uptime", hb.Uptime,
				"position", hb.Position,
				"moves", hb.Counts.Moves,
				"errors", hb.Counts.Errors)

			// Refresh network info for heartbeat
			if net := readNetworkInfo(networkEnv); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			hbEvent := publish.SystemEvent{
				Timestamp:  hb.Timestamp,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Warn("heartbeat publish error", "error", err)
			}
		}
	}
}

// runRead launches the encoder, prints count readings spaced wait apart
// and stops it again.
func runRead(cfg config.Config, log *slog.Logger, w io.Writer, wait time.Duration, count int) error {
	enc, err := launch(cfg, log, nil)
	if err != nil {
		return fmt.Errorf("launch encoder: %w", err)
	}
	readErr := readLoop(enc, w, wait, count, time.After)
	return errors.Join(readErr, enc.Terminate())
}

func readLoop(enc snapshotter, w io.Writer, wait time.Duration, count int, after func(time.Duration) <-chan time.Time) error {
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		<-after(wait)
		snap, err := enc.Snapshot()
		if err != nil {
			return fmt.Errorf("read encoder: %w", err)
		}
		fmt.Fprintf(w, "position=%d latency=%s errors=%d last_error=%s\n",
			snap.Position, snap.Latency, snap.Errors, snap.LastError)
	}
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper variable names.
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// readNetworkInfo reads pi-helper's env file, falling back to the process
// environment when the file is missing. Returns nil if no status is known.
func readNetworkInfo(path string) *status.NetworkInfo {
	env, err := godotenv.Read(path)
	if err != nil {
		env = map[string]string{}
		for _, k := range []string{envNetworkType, envNetworkIP, envNetworkStatus, envNetworkGateway, envNetworkWifiStatus, envNetworkWifiSSID} {
			env[k] = os.Getenv(k)
		}
	}

	s := env[envNetworkStatus]
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       env[envNetworkType],
		IP:         env[envNetworkIP],
		Status:     s,
		Gateway:    env[envNetworkGateway],
		WifiStatus: env[envNetworkWifiStatus],
		SSID:       env[envNetworkWifiSSID],
	}
}
