// Package discovery builds Home Assistant MQTT autodiscovery payloads
// for KPM33B meters.
//
// Each meter is announced as two sensors sharing one device block:
//
//	<prefix>/sensor/kpm33b_<meter_id>/power/config   (active power, kW)
//	<prefix>/sensor/kpm33b_<meter_id>/energy/config  (active energy, kWh)
//
// The builders are pure functions; publishing is the bridge's job.
package discovery

import (
	"math"
)

// Device identity constants shared by both sensors of a meter.
const (
	Manufacturer = "Compere"
	Model        = "KPM33B"
)

// Sensor kind names used in discovery topics and unique IDs.
const (
	SensorPower  = "power"
	SensorEnergy = "energy"
)

// expireFactor scales an upload frequency into the availability-expiry
// window: a sensor is considered unavailable after missing half an
// update interval on top of the expected one.
const expireFactor = 1.5

// Display precision hints for the two measurement kinds.
const (
	powerPrecision  = 3
	energyPrecision = 2
)

// Device is the shared device-identity block. Identical across both
// sensors of a meter so the discovery consumer groups them.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// SensorConfig is a Home Assistant sensor discovery payload.
type SensorConfig struct {
	Name                      string `json:"name"`
	UniqueID                  string `json:"unique_id"`
	StateTopic                string `json:"state_topic"`
	DeviceClass               string `json:"device_class"`
	StateClass                string `json:"state_class"`
	UnitOfMeasurement         string `json:"unit_of_measurement"`
	ValueTemplate             string `json:"value_template"`
	SuggestedDisplayPrecision int    `json:"suggested_display_precision"`
	ExpireAfter               int    `json:"expire_after"`
	Device                    Device `json:"device"`
}

// Builder produces discovery topics and payloads for one deployment's
// topic layout and upload cadence.
type Builder struct {
	// Prefix is the discovery prefix, e.g. "homeassistant".
	Prefix string

	// BaseTopic is the central base topic for meter data, e.g. "kpm33b".
	BaseTopic string

	// UploadFrequencySeconds is the seconds-level upload interval.
	UploadFrequencySeconds int

	// UploadFrequencyMinutes is the minutes-level upload interval.
	UploadFrequencyMinutes int
}

// Topic returns the discovery config topic for one sensor of a meter.
//
// Example: homeassistant/sensor/kpm33b_33B1225950027/power/config
func (b Builder) Topic(meterID, sensor string) string {
	return b.Prefix + "/sensor/kpm33b_" + meterID + "/" + sensor + "/config"
}

// Power returns the discovery topic and payload for a meter's active
// power sensor. The optional context label becomes a state-topic path
// segment and the device display name.
func (b Builder) Power(meterID, context string) (string, SensorConfig) {
	payload := SensorConfig{
		Name:                      "Active Power",
		UniqueID:                  "kpm33b_" + meterID + "_" + SensorPower,
		StateTopic:                b.stateTopic(meterID, context, "seconds"),
		DeviceClass:               "power",
		StateClass:                "measurement",
		UnitOfMeasurement:         "kW",
		ValueTemplate:             "{{ value_json.active_power }}",
		SuggestedDisplayPrecision: powerPrecision,
		ExpireAfter:               expireAfter(b.UploadFrequencySeconds),
		Device:                    b.deviceBlock(meterID, context),
	}
	return b.Topic(meterID, SensorPower), payload
}

// Energy returns the discovery topic and payload for a meter's active
// energy sensor.
func (b Builder) Energy(meterID, context string) (string, SensorConfig) {
	payload := SensorConfig{
		Name:                      "Active Energy",
		UniqueID:                  "kpm33b_" + meterID + "_" + SensorEnergy,
		StateTopic:                b.stateTopic(meterID, context, "minutes"),
		DeviceClass:               "energy",
		StateClass:                "total_increasing",
		UnitOfMeasurement:         "kWh",
		ValueTemplate:             "{{ value_json.active_energy }}",
		SuggestedDisplayPrecision: energyPrecision,
		ExpireAfter:               expireAfter(b.UploadFrequencyMinutes * 60),
		Device:                    b.deviceBlock(meterID, context),
	}
	return b.Topic(meterID, SensorEnergy), payload
}

// stateTopic builds the state topic the sensor watches.
func (b Builder) stateTopic(meterID, context, kind string) string {
	if context != "" {
		return b.BaseTopic + "/" + context + "/" + meterID + "/" + kind
	}
	return b.BaseTopic + "/" + meterID + "/" + kind
}

// deviceBlock builds the shared device-identity block. The context
// label doubles as the human-readable device name; without one, a
// generic label from the model and meter ID is used.
func (b Builder) deviceBlock(meterID, context string) Device {
	name := Model + " " + meterID
	if context != "" {
		name = context
	}
	return Device{
		Identifiers:  []string{"kpm33b_" + meterID},
		Name:         name,
		Manufacturer: Manufacturer,
		Model:        Model,
	}
}

// expireAfter computes the availability-expiry window in seconds from
// an upload frequency in seconds.
func expireAfter(frequencySeconds int) int {
	return int(math.Ceil(float64(frequencySeconds) * expireFactor))
}
