package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/compere/kpm-bridge/internal/discovery"
	"github.com/compere/kpm-bridge/internal/infrastructure/config"
	"github.com/compere/kpm-bridge/internal/infrastructure/mqtt"
	"github.com/compere/kpm-bridge/internal/transform"
)

// dataQoS is the delivery guarantee for telemetry and discovery
// publishes (at least once).
const dataQoS = 1

// MQTTClient is the interface for one broker connection.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error
}

// Logger defines the logging interface for the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the bridge's topic layout and meter settings.
type Config struct {
	Internal config.InternalTopicsConfig
	Central  config.CentralTopicsConfig
	Meters   config.MeterConfig
}

// Bridge routes raw telemetry from the internal broker to the central
// broker: decode, transform, exclusion gating, first-sight autodiscovery
// announcement, and simplified-data publishing.
//
// The announced set is touched only from the internal connection's
// delivery goroutine, so it needs no lock.
type Bridge struct {
	cfg      Config
	internal MQTTClient
	central  MQTTClient
	topics   mqtt.Topics
	builder  discovery.Builder

	// announced holds meter IDs whose discovery configs were already
	// published. Never persisted; a restart re-announces every meter.
	announced map[string]struct{}

	// excluded holds meter IDs the bridge silently drops.
	excluded map[string]struct{}

	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a bridge routing from the internal client to the central
// client.
func New(cfg Config, internal, central MQTTClient) *Bridge {
	excluded := make(map[string]struct{}, len(cfg.Meters.ExcludeDeviceIDs))
	for _, id := range cfg.Meters.ExcludeDeviceIDs {
		excluded[id] = struct{}{}
	}

	return &Bridge{
		cfg:      cfg,
		internal: internal,
		central:  central,
		topics: mqtt.Topics{
			Main: cfg.Central.MainTopic,
		},
		builder: discovery.Builder{
			Prefix:                 cfg.Central.DiscoveryPrefix,
			BaseTopic:              cfg.Central.MainTopic,
			UploadFrequencySeconds: cfg.Meters.UploadFrequencySeconds,
			UploadFrequencyMinutes: cfg.Meters.UploadFrequencyMinutes,
		},
		announced: make(map[string]struct{}),
		excluded:  excluded,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for bridge events.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) log() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// Start subscribes to the internal telemetry topics and begins routing.
func (b *Bridge) Start() error {
	topics := []string{b.cfg.Internal.SecondsData, b.cfg.Internal.MinutesData}
	for _, topic := range topics {
		if err := b.internal.Subscribe(topic, dataQoS, b.handleTelemetry); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	b.log().Info("bridge started", "topics", topics)
	return nil
}

// Stop halts routing by unsubscribing from the telemetry topics.
// Idempotent. Closing the underlying connections is the caller's job.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		for _, topic := range []string{b.cfg.Internal.SecondsData, b.cfg.Internal.MinutesData} {
			if err := b.internal.Unsubscribe(topic); err != nil {
				b.log().Debug("unsubscribe failed during stop", "topic", topic, "error", err)
			}
		}
		b.log().Info("bridge stopped")
	})
}

// handleTelemetry processes one inbound internal-broker message.
// Telemetry is loss-tolerant: every failure path logs and discards,
// never crashes, never retries.
func (b *Bridge) handleTelemetry(topic string, payload []byte) error {
	var raw transform.Raw
	if err := json.Unmarshal(payload, &raw); err != nil {
		b.log().Error("invalid JSON payload",
			"topic", topic,
			"error", err,
		)
		return nil
	}

	var (
		record   any
		kind     string
		deviceID string
	)

	switch topic {
	case b.cfg.Internal.SecondsData:
		rec, err := transform.Rate(raw)
		if err != nil {
			b.logTransformError(topic, err)
			return nil
		}
		record, kind, deviceID = rec, mqtt.KindSeconds, transform.DeviceID(rec.ID)
	case b.cfg.Internal.MinutesData:
		rec, err := transform.Cumulative(raw)
		if err != nil {
			b.logTransformError(topic, err)
			return nil
		}
		record, kind, deviceID = rec, mqtt.KindMinutes, transform.DeviceID(rec.ID)
	default:
		b.log().Debug("ignoring message on unhandled topic", "topic", topic)
		return nil
	}

	if _, skip := b.excluded[deviceID]; skip {
		return nil
	}

	// Announce new meters before the first data publish. The meter is
	// marked announced up front: a failed discovery or data publish
	// does not trigger re-announcement (at-most-once discovery).
	if _, seen := b.announced[deviceID]; !seen && deviceID != "unknown" {
		b.announced[deviceID] = struct{}{}
		b.log().Info("new meter discovered, publishing autodiscovery", "meter_id", deviceID)
		b.publishDiscovery(deviceID, b.cfg.Meters.Contexts[deviceID])
	}

	body, err := json.Marshal(record)
	if err != nil {
		b.log().Error("encoding simplified record", "meter_id", deviceID, "error", err)
		return nil
	}

	target := b.topics.Data(deviceID, kind)
	if err := b.central.Publish(target, body, dataQoS, false); err != nil {
		b.log().Error("publish failed", "topic", target, "error", err)
		return nil
	}
	b.log().Debug("published", "topic", target)
	return nil
}

// logTransformError distinguishes the named split-payload condition
// from anything unexpected.
func (b *Bridge) logTransformError(topic string, err error) {
	if errors.Is(err, transform.ErrSplitPayload) {
		b.log().Error("data validation error", "topic", topic, "error", err)
		return
	}
	b.log().Error("transform failed", "topic", topic, "error", err)
}

// publishDiscovery publishes both sensor configs for a meter, retained,
// so a restarted discovery consumer still sees them. Both sensors must
// be published for the meter to be fully announced; each result is
// logged independently.
func (b *Bridge) publishDiscovery(meterID, context string) {
	powerTopic, powerPayload := b.builder.Power(meterID, context)
	b.publishConfig(meterID, discovery.SensorPower, powerTopic, powerPayload)

	energyTopic, energyPayload := b.builder.Energy(meterID, context)
	b.publishConfig(meterID, discovery.SensorEnergy, energyTopic, energyPayload)
}

func (b *Bridge) publishConfig(meterID, sensor, topic string, payload discovery.SensorConfig) {
	body, err := json.Marshal(payload)
	if err != nil {
		b.log().Error("encoding discovery payload", "meter_id", meterID, "sensor", sensor, "error", err)
		return
	}
	if err := b.central.Publish(topic, body, dataQoS, true); err != nil {
		b.log().Error("failed to publish discovery", "meter_id", meterID, "sensor", sensor, "error", err)
		return
	}
	b.log().Info("published discovery", "meter_id", meterID, "sensor", sensor)
}
