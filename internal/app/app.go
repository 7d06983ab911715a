// Package app holds wiring helpers shared by the two binaries:
// broker connection with logging callbacks and config-path resolution.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/compere/kpm-bridge/internal/infrastructure/config"
	"github.com/compere/kpm-bridge/internal/infrastructure/logging"
	"github.com/compere/kpm-bridge/internal/infrastructure/mqtt"
)

// DefaultConfigPath is used when KPMBRIDGE_CONFIG is not set.
const DefaultConfigPath = "configs/config.yaml"

// ConfigPath returns the configuration file path.
// Uses the KPMBRIDGE_CONFIG environment variable if set, otherwise the
// default.
func ConfigPath() string {
	if path := os.Getenv("KPMBRIDGE_CONFIG"); path != "" {
		return path
	}
	return DefaultConfigPath
}

// ConnectBroker creates a client for one broker and blocks until the
// connection is established or ctx is cancelled. An unset client ID
// defaults to "<service>-<name>" so the two connections of one binary
// stay distinguishable on a shared broker.
func ConnectBroker(ctx context.Context, service, name string, broker config.BrokerConfig, reconnect config.ReconnectConfig, log *logging.Logger) (*mqtt.Client, error) {
	if broker.ClientID == "" {
		broker.ClientID = service + "-" + name
	}

	client := mqtt.New(broker, reconnect)
	client.SetLogger(log.With("broker", name))
	client.SetOnConnect(func() {
		log.Info("MQTT connected", "broker", name)
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "broker", name, "error", err)
	})

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting to %s broker: %w", name, err)
	}
	log.Info("broker connected",
		"broker", name,
		"host", fmt.Sprintf("%s:%d", broker.Host, broker.Port),
		"client_id", broker.ClientID,
	)
	return client, nil
}

// CloseBroker disconnects a broker client, logging any error.
func CloseBroker(name string, client *mqtt.Client, log *logging.Logger) {
	log.Info("disconnecting from MQTT", "broker", name)
	if err := client.Close(); err != nil {
		log.Error("error closing MQTT", "broker", name, "error", err)
	}
}
