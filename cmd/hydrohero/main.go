package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/AngelLalu20/hydro-hero/internal/actuator"
	"github.com/AngelLalu20/hydro-hero/internal/clock"
	"github.com/AngelLalu20/hydro-hero/internal/config"
	"github.com/AngelLalu20/hydro-hero/internal/console"
	"github.com/AngelLalu20/hydro-hero/internal/device"
	"github.com/AngelLalu20/hydro-hero/internal/sensors"
	"github.com/AngelLalu20/hydro-hero/internal/server"
	"github.com/AngelLalu20/hydro-hero/internal/store"
)

// Command hydrohero runs the flow-metering appliance daemon.
//
// The daemon:
//   - counts flow-sensor pulses and derives consumption at five
//     granularities
//   - evaluates leak, surge, quality, budget and health detection rules
//   - drives the shutoff valve and operator alerts
//   - serves the dashboard API, a WebSocket stream and Prometheus metrics
//   - serves a line-oriented console over TCP
//
// Usage:
//
//	hydrohero [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-sim
//	      generate simulated sensor pulses (default true)
//	-seed int
//	      simulator seed (default 1)
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	simulate := flag.Bool("sim", true, "generate simulated sensor pulses")
	seed := flag.Int64("seed", 1, "simulator seed")
	flag.Parse()

	// Optional .env for deployments that inject secrets via environment.
	_ = godotenv.Load()

	cfg, cfgErr := config.Load(*configPath)
	if cfgErr != nil {
		cfg = config.Default()
	}

	logger := newLogger(cfg.Logging)
	if cfgErr != nil {
		logger.WithError(cfgErr).Warn("config load failed, using compiled defaults")
	}

	zoneNames := make([]string, len(cfg.Zones))
	for i, z := range cfg.Zones {
		zoneNames[i] = z.Name
	}
	src := sensors.NewSimSource(*seed, zoneNames)

	hub := server.NewHub(logger)
	act := actuator.Multi{actuator.NewLog(logger), server.NewHubNotifier(hub)}

	dev := device.New(cfg, clock.System{}, act, src, logger)
	if cfgErr != nil {
		dev.EventLog().Append(store.Event{
			Type:     store.EventConfigDefault,
			Message:  fmt.Sprintf("persisted config unavailable: %v", cfgErr),
			Time:     time.Now(),
			Priority: store.SeverityMedium,
			Source:   "boot",
		})
	}

	// The host OS keeps wall time via NTP; calendar-gated logic is safe.
	dev.MarkTimeSynced()

	srv, err := server.New(dev, hub, cfg.Server, logger)
	if err != nil {
		logger.Fatalf("failed to set up dashboard server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 4)

	go func() {
		if err := dev.Run(ctx); err != nil && ctx.Err() == nil {
			errChan <- fmt.Errorf("device loop: %w", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := srv.Run(ctx, addr); err != nil && ctx.Err() == nil {
			errChan <- fmt.Errorf("dashboard server: %w", err)
		}
	}()

	if cfg.Console.Enabled {
		go func() {
			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Console.Port)
			if err := console.NewServer(dev, logger).ListenAndServe(ctx, addr); err != nil && ctx.Err() == nil {
				errChan <- fmt.Errorf("console server: %w", err)
			}
		}()
	}

	if *simulate {
		go sensors.RunPulseSim(ctx, dev.Counter().Pulse, *seed, 200)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("shutting down")
		cancel()
		// Give the servers a moment to drain.
		time.Sleep(500 * time.Millisecond)
	case err := <-errChan:
		logger.WithError(err).Error("service error, shutting down")
		cancel()
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
