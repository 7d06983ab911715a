// KPM Config Sender - meter configuration pusher
//
// This is the main entry point for the config sender process. It
// watches simplified telemetry on the central broker to discover
// meters, pushes upload-frequency commands to newly seen meters over
// the internal broker, tracks per-command acknowledgements, and
// re-pushes configuration to the whole fleet when the settings file
// changes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/compere/kpm-bridge/internal/app"
	"github.com/compere/kpm-bridge/internal/configsender"
	"github.com/compere/kpm-bridge/internal/infrastructure/config"
	"github.com/compere/kpm-bridge/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const serviceName = "kpm-configsender"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability.
func run(ctx context.Context) error {
	log := logging.Default(serviceName)
	log.Info("starting KPM config sender",
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

	// The settings file doubles as the re-push source: edits to the
	// meter section are detected by modification time and pushed to
	// every known meter.
	settings := config.NewFileSettings(configPath)

	sender := configsender.New(configsender.Config{
		MainTopic:     cfg.CentralTopics.MainTopic,
		SetTimePrefix: cfg.InternalTopics.SetTimePrefix,
		AckTopic:      cfg.InternalTopics.SetTimeAck,
		Meters:        cfg.Meters,
	}, internal, central, settings)
	sender.SetLogger(log)

	if err := sender.Start(); err != nil {
		return fmt.Errorf("starting config sender: %w", err)
	}
	defer func() {
		log.Info("stopping config sender")
		sender.Stop()
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}
