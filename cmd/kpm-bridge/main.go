// KPM Bridge - meter telemetry republisher
//
// This is the main entry point for the bridge process. It connects to
// both the internal (meter-facing) and central brokers, transforms raw
// KPM33B telemetry into simplified records, announces each meter to
// Home Assistant on first sight, and republishes the simplified data
// on the central broker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/compere/kpm-bridge/internal/app"
	"github.com/compere/kpm-bridge/internal/bridge"
	"github.com/compere/kpm-bridge/internal/infrastructure/config"
	"github.com/compere/kpm-bridge/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const serviceName = "kpm-bridge"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default(serviceName)
	log.Info("starting KPM bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := app.ConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, serviceName, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	internal, err := app.ConnectBroker(ctx, serviceName, "internal", cfg.InternalBroker, cfg.Reconnect, log)
	if err != nil {
		return err
	}
	defer app.CloseBroker("internal", internal, log)

	central, err := app.ConnectBroker(ctx, serviceName, "central", cfg.CentralBroker, cfg.Reconnect, log)
	if err != nil {
		return err
	}
	defer app.CloseBroker("central", central, log)

	b := bridge.New(bridge.Config{
		Internal: cfg.InternalTopics,
		Central:  cfg.CentralTopics,
		Meters:   cfg.Meters,
	}, internal, central)
	b.SetLogger(log)

	if err := b.Start(); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		b.Stop()
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}
