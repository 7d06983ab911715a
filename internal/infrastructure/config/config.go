package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the KPM33B bridge and
// config sender. All configuration is loaded from YAML and can be
// overridden by environment variables.
type Config struct {
	InternalBroker BrokerConfig         `yaml:"internal_broker"`
	CentralBroker  BrokerConfig         `yaml:"central_broker"`
	InternalTopics InternalTopicsConfig `yaml:"internal_broker_topics"`
	CentralTopics  CentralTopicsConfig  `yaml:"central_broker_topics"`
	Meters         MeterConfig          `yaml:"kpm33b_meters"`
	Logging        LoggingConfig        `yaml:"logging"`
	Reconnect      ReconnectConfig      `yaml:"reconnect"`
}

// BrokerConfig contains MQTT broker connection details.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// InternalTopicsConfig contains the topic names used on the internal
// (meter-facing) broker.
type InternalTopicsConfig struct {
	// SecondsData carries raw seconds-level telemetry (MQTT_RT_DATA).
	SecondsData string `yaml:"meter_seconds_data"`

	// MinutesData carries raw minutes-level telemetry (MQTT_ENY_NOW).
	MinutesData string `yaml:"meter_minutes_data"`

	// SetTimePrefix is the command topic prefix; the last 8 characters
	// of the meter ID are appended to address a single meter.
	SetTimePrefix string `yaml:"meter_settime"`

	// SetTimeAck carries command acknowledgements from meters.
	SetTimeAck string `yaml:"meter_settime_ack"`
}

// CentralTopicsConfig contains the topic names used on the central broker.
type CentralTopicsConfig struct {
	// MainTopic is the base topic for simplified meter data,
	// e.g. "kpm33b" -> "kpm33b/<meter_id>/seconds".
	MainTopic string `yaml:"external_main_topic"`

	// DiscoveryPrefix is the Home Assistant discovery prefix.
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// MeterConfig contains the fleet-wide meter settings pushed by the
// config sender plus the bridge's routing exceptions.
type MeterConfig struct {
	UploadFrequencySeconds int `yaml:"upload_frequency_seconds"`
	UploadFrequencyMinutes int `yaml:"upload_frequency_minutes"`

	// ExcludeDeviceIDs lists meter IDs the bridge silently drops.
	ExcludeDeviceIDs []string `yaml:"exclude_device_ids"`

	// Contexts maps a meter ID to an optional location/function label,
	// e.g. "building1/floor2". The label becomes a state-topic path
	// segment and doubles as the Home Assistant device display name.
	Contexts map[string]string `yaml:"contexts"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ReconnectConfig contains connection retry settings in seconds.
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KPMBRIDGE_SECTION_KEY
// For example: KPMBRIDGE_INTERNAL_HOST, KPMBRIDGE_CENTRAL_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		InternalBroker: BrokerConfig{
			Host: "localhost",
			Port: 1883,
		},
		CentralBroker: BrokerConfig{
			Host: "localhost",
			Port: 1883,
		},
		InternalTopics: InternalTopicsConfig{
			SecondsData: "MQTT_RT_DATA",
			MinutesData: "MQTT_ENY_NOW",
		},
		CentralTopics: CentralTopicsConfig{
			MainTopic:       "kpm33b",
			DiscoveryPrefix: "homeassistant",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Reconnect: ReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Only connection details are overridable; topic names
// and meter settings live in the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KPMBRIDGE_INTERNAL_HOST"); v != "" {
		cfg.InternalBroker.Host = v
	}
	if v := os.Getenv("KPMBRIDGE_INTERNAL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.InternalBroker.Port = port
		}
	}
	if v := os.Getenv("KPMBRIDGE_INTERNAL_USERNAME"); v != "" {
		cfg.InternalBroker.Username = v
	}
	if v := os.Getenv("KPMBRIDGE_INTERNAL_PASSWORD"); v != "" {
		cfg.InternalBroker.Password = v
	}
	if v := os.Getenv("KPMBRIDGE_CENTRAL_HOST"); v != "" {
		cfg.CentralBroker.Host = v
	}
	if v := os.Getenv("KPMBRIDGE_CENTRAL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.CentralBroker.Port = port
		}
	}
	if v := os.Getenv("KPMBRIDGE_CENTRAL_USERNAME"); v != "" {
		cfg.CentralBroker.Username = v
	}
	if v := os.Getenv("KPMBRIDGE_CENTRAL_PASSWORD"); v != "" {
		cfg.CentralBroker.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if msg := validateBroker("internal_broker", c.InternalBroker); msg != "" {
		errs = append(errs, msg)
	}
	if msg := validateBroker("central_broker", c.CentralBroker); msg != "" {
		errs = append(errs, msg)
	}

	if c.InternalTopics.SecondsData == "" {
		errs = append(errs, "internal_broker_topics.meter_seconds_data is required")
	}
	if c.InternalTopics.MinutesData == "" {
		errs = append(errs, "internal_broker_topics.meter_minutes_data is required")
	}
	if c.InternalTopics.SetTimePrefix == "" {
		errs = append(errs, "internal_broker_topics.meter_settime is required")
	}
	if c.InternalTopics.SetTimeAck == "" {
		errs = append(errs, "internal_broker_topics.meter_settime_ack is required")
	}
	if c.CentralTopics.MainTopic == "" {
		errs = append(errs, "central_broker_topics.external_main_topic is required")
	}
	if c.CentralTopics.DiscoveryPrefix == "" {
		errs = append(errs, "central_broker_topics.discovery_prefix is required")
	}

	if c.Meters.UploadFrequencySeconds <= 0 {
		errs = append(errs, "kpm33b_meters.upload_frequency_seconds must be positive")
	}
	if c.Meters.UploadFrequencyMinutes <= 0 {
		errs = append(errs, "kpm33b_meters.upload_frequency_minutes must be positive")
	}

	if c.Reconnect.InitialDelay < 1 {
		errs = append(errs, "reconnect.initial_delay must be at least 1")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		errs = append(errs, "reconnect.max_delay must be >= reconnect.initial_delay")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateBroker returns an error message for an invalid broker section,
// or "" if valid.
func validateBroker(section string, b BrokerConfig) string {
	if b.Host == "" {
		return section + ".host is required"
	}
	if b.Port < 1 || b.Port > 65535 {
		return section + ".port must be between 1 and 65535"
	}
	return ""
}
