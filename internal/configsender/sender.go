package configsender

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/compere/kpm-bridge/internal/infrastructure/config"
	"github.com/compere/kpm-bridge/internal/infrastructure/mqtt"
)

// Command codes understood by KPM33B meters.
const (
	// CmdRateInterval sets the seconds-level upload interval.
	CmdRateInterval = "0000"

	// CmdCumulativeInterval sets the minutes-level upload interval.
	CmdCumulativeInterval = "0001"
)

// commandType is the fixed type tag carried by every command.
const commandType = "1"

// commandQoS is the delivery guarantee for commands (at least once).
const commandQoS = 1

// Timing defaults, overridable through Config for tests.
const (
	defaultAckTimeout   = 3 * time.Second
	defaultPollInterval = 5 * time.Second
)

// Command kind labels used in log lines.
const (
	labelSeconds = "seconds"
	labelMinutes = "minutes"
)

// MQTTClient is the interface for one broker connection.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// SettingsSource supplies the current meter settings and their
// modification timestamp for change detection. Satisfied by
// config.FileSettings.
type SettingsSource interface {
	ModTime() (time.Time, error)
	Meters() (config.MeterConfig, error)
}

// Logger defines the logging interface for the sender.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Alert(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Alert(string, ...any) {}

// commandMessage is the command payload published to a meter.
// Field casing follows the meter firmware's protocol.
type commandMessage struct {
	Oprid string `json:"oprid"`
	Cmd   string `json:"Cmd"`
	Value string `json:"value"`
	Types string `json:"types"`
}

// ackMessage is the acknowledgement payload received from a meter.
type ackMessage struct {
	Oprid string `json:"oprid"`
}

// pendingCommand tracks one published command awaiting acknowledgement.
// The acked channel is closed exactly once, by the resolver that
// removes the entry from the pending table.
type pendingCommand struct {
	oprid    string
	issuedAt time.Time
	acked    chan struct{}
}

// Config holds the sender's topic layout, meter settings, and timing.
type Config struct {
	// MainTopic is the central base topic watched for meter discovery.
	MainTopic string

	// SetTimePrefix is the internal command topic prefix.
	SetTimePrefix string

	// AckTopic is the internal acknowledgement topic.
	AckTopic string

	// Meters is the startup snapshot of meter settings.
	Meters config.MeterConfig

	// AckTimeout bounds the wait for a command acknowledgement.
	// Defaults to 3s.
	AckTimeout time.Duration

	// PollInterval is the settings change-detection cadence.
	// Defaults to 5s.
	PollInterval time.Duration
}

// Sender discovers meters through central-broker telemetry traffic,
// pushes upload-frequency configuration to them on the internal broker,
// and confirms delivery through per-command acknowledgements.
//
// Thread Safety: the known-meter set and the pending-command table are
// mutated from the central delivery goroutine, the internal delivery
// goroutine, and the settings poller; every read-modify-write holds mu.
type Sender struct {
	cfg      Config
	internal MQTTClient
	central  MQTTClient
	topics   mqtt.Topics
	settings SettingsSource

	mu      sync.Mutex
	known   map[string]struct{}
	meters  config.MeterConfig
	pending map[string]*pendingCommand

	// lastMod is touched only by the settings poller goroutine.
	lastMod time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a sender. The settings source may be nil, disabling the
// re-push poller.
func New(cfg Config, internal, central MQTTClient, settings SettingsSource) *Sender {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	return &Sender{
		cfg:      cfg,
		internal: internal,
		central:  central,
		topics: mqtt.Topics{
			Main:          cfg.MainTopic,
			SetTimePrefix: cfg.SetTimePrefix,
		},
		settings: settings,
		known:    make(map[string]struct{}),
		meters:   cfg.Meters,
		pending:  make(map[string]*pendingCommand),
		done:     make(chan struct{}),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for sender events.
func (s *Sender) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Sender) log() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// Start subscribes to the acknowledgement and discovery topics and
// starts the settings poller.
func (s *Sender) Start() error {
	if err := s.internal.Subscribe(s.cfg.AckTopic, commandQoS, s.handleAck); err != nil {
		return err
	}
	if err := s.central.Subscribe(s.topics.DiscoverySubscription(), commandQoS, s.handleDiscovery); err != nil {
		return err
	}

	if s.settings != nil {
		s.wg.Add(1)
		go s.pollSettings()
	}

	s.log().Info("config sender started",
		"discovery_topic", s.topics.DiscoverySubscription(),
		"ack_topic", s.cfg.AckTopic,
	)
	return nil
}

// Stop halts message delivery and the settings poller. Idempotent.
// In-flight acknowledgement waits are not cancelled; they resolve
// through their own short timeout.
func (s *Sender) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if err := s.central.Unsubscribe(s.topics.DiscoverySubscription()); err != nil {
			s.log().Debug("unsubscribe failed during stop", "error", err)
		}
		if err := s.internal.Unsubscribe(s.cfg.AckTopic); err != nil {
			s.log().Debug("unsubscribe failed during stop", "error", err)
		}
		s.wg.Wait()
		s.log().Info("config sender stopped")
	})
}

// handleDiscovery processes central-broker telemetry traffic. Only the
// topic's meter-ID segment is used; the body is ignored.
func (s *Sender) handleDiscovery(topic string, _ []byte) error {
	meterID, ok := mqtt.MeterIDFromData(topic)
	if !ok {
		return nil
	}

	s.mu.Lock()
	_, known := s.known[meterID]
	if !known {
		s.known[meterID] = struct{}{}
	}
	meters := s.meters
	s.mu.Unlock()

	if known {
		return nil
	}

	s.log().Info("discovered new meter", "meter_id", meterID)
	s.sendMeterConfig(meterID, meters)
	return nil
}

// handleAck resolves pending commands from acknowledgement messages.
// Unknown or malformed acknowledgements are logged and ignored, never
// fatal; a second acknowledgement for the same oprid is a no-op.
func (s *Sender) handleAck(topic string, payload []byte) error {
	var ack ackMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		s.log().Error("invalid JSON ack", "topic", topic, "error", err)
		return nil
	}
	if ack.Oprid == "" {
		s.log().Debug("ack without oprid", "topic", topic)
		return nil
	}

	s.mu.Lock()
	pc, ok := s.pending[ack.Oprid]
	if ok {
		delete(s.pending, ack.Oprid)
	}
	s.mu.Unlock()

	if !ok {
		s.log().Debug("ack for unknown oprid", "oprid", ack.Oprid)
		return nil
	}

	close(pc.acked)
	return nil
}

// sendMeterConfig sends both upload-interval commands to one meter.
// The acknowledgement wait inside sendCommand serializes them: the
// minutes command is not sent until the seconds command's wait
// completes, by success or timeout.
func (s *Sender) sendMeterConfig(meterID string, meters config.MeterConfig) {
	s.sendCommand(meterID, CmdRateInterval,
		strconv.Itoa(meters.UploadFrequencySeconds), labelSeconds)
	s.sendCommand(meterID, CmdCumulativeInterval,
		strconv.Itoa(meters.UploadFrequencyMinutes), labelMinutes)
}

// sendCommand publishes one command and blocks until its
// acknowledgement arrives or the wait times out.
func (s *Sender) sendCommand(meterID, cmd, value, label string) {
	oprid := newOprid()
	pc := &pendingCommand{
		oprid:    oprid,
		issuedAt: time.Now(),
		acked:    make(chan struct{}),
	}

	s.mu.Lock()
	s.pending[oprid] = pc
	s.mu.Unlock()

	body, err := json.Marshal(commandMessage{
		Oprid: oprid,
		Cmd:   cmd,
		Value: value,
		Types: commandType,
	})
	if err != nil {
		s.removePending(oprid)
		s.log().Error("encoding command", "meter_id", meterID, "command", label, "error", err)
		return
	}

	topic := s.topics.SetTime(meterID)
	if err := s.internal.Publish(topic, body, commandQoS, false); err != nil {
		// A failed publish aborts the wait immediately: there is
		// nothing in flight to acknowledge.
		s.removePending(oprid)
		s.log().Error("publish config failed",
			"meter_id", meterID,
			"command", label,
			"topic", topic,
			"error", err,
		)
		return
	}

	s.log().Info("sent config to meter",
		"meter_id", meterID,
		"command", label,
		"oprid", oprid,
		"value", value,
	)

	select {
	case <-pc.acked:
		s.log().Info("ack received",
			"meter_id", meterID,
			"command", label,
			"oprid", oprid,
		)
	case <-time.After(s.cfg.AckTimeout):
		s.removePending(oprid)
		s.log().Alert("no acknowledgement from meter",
			"meter_id", meterID,
			"command", label,
			"oprid", oprid,
			"waited", time.Since(pc.issuedAt).String(),
		)
	}
}

// removePending deletes a pending entry. Both the acknowledgement and
// the timeout path may race to remove the same entry; not-found is a
// no-op.
func (s *Sender) removePending(oprid string) {
	s.mu.Lock()
	delete(s.pending, oprid)
	s.mu.Unlock()
}

// pollSettings watches the settings source for changes and re-pushes
// configuration to every known meter when one is detected.
func (s *Sender) pollSettings() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.checkSettings()
		}
	}
}

// checkSettings compares the settings source's modification timestamp
// against the last observed value. The very first check only records
// the baseline and issues no re-push.
func (s *Sender) checkSettings() {
	mtime, err := s.settings.ModTime()
	if err != nil {
		s.log().Debug("settings mtime check failed", "error", err)
		return
	}

	if s.lastMod.IsZero() {
		s.lastMod = mtime
		return
	}
	if !mtime.After(s.lastMod) {
		return
	}
	s.lastMod = mtime

	meters, err := s.settings.Meters()
	if err != nil {
		s.log().Error("reloading settings failed", "error", err)
		return
	}

	s.mu.Lock()
	s.meters = meters
	ids := make([]string, 0, len(s.known))
	for id := range s.known {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	s.log().Info("settings changed, re-sending config", "meters", len(ids))
	for _, id := range ids {
		s.sendMeterConfig(id, meters)
	}
}

// newOprid generates a 32-character hex operation id.
func newOprid() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
