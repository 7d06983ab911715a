package mqtt

import "strings"

// Data topic suffixes for the two telemetry kinds on the central broker.
const (
	// KindSeconds is the suffix for seconds-level (power rate) data.
	KindSeconds = "seconds"

	// KindMinutes is the suffix for minutes-level (cumulative energy) data.
	KindMinutes = "minutes"
)

// meterAddressLen is the number of trailing meter-ID characters used to
// address a single meter on the command topic.
const meterAddressLen = 8

// minDataTopicParts is the minimum number of segments in a central data
// topic: <main>/<meter_id>/<kind>.
const minDataTopicParts = 3

// Topics builds the configurable topic names used across the bridge and
// config sender. Using these helpers keeps topic naming consistent
// between the publishing and subscribing side.
//
//	topics := mqtt.Topics{Main: "kpm33b", SetTimePrefix: "MQTT_SETTIME_"}
//	topics.Data("33B1225950027", mqtt.KindSeconds)
//	// Returns: "kpm33b/33B1225950027/seconds"
type Topics struct {
	// Main is the central broker's base topic for simplified data.
	Main string

	// SetTimePrefix is the internal broker's command topic prefix.
	SetTimePrefix string
}

// Data returns the central data topic for a meter. The shape is always
// <main>/<meter_id>/<kind> so the config sender's single-level
// discovery wildcard matches every meter; context labels appear only in
// discovery payloads, never in data topics.
func (t Topics) Data(meterID, kind string) string {
	return t.Main + "/" + meterID + "/" + kind
}

// DiscoverySubscription returns the wildcard pattern the config sender
// subscribes to for meter discovery.
//
// Pattern: <main>/+/seconds
func (t Topics) DiscoverySubscription() string {
	return t.Main + "/+/" + KindSeconds
}

// SetTime returns the command topic for a meter, built from the
// configured prefix and the meter's short address (last 8 characters of
// the meter ID).
//
// Example: MQTT_SETTIME_25950027
func (t Topics) SetTime(meterID string) string {
	return t.SetTimePrefix + MeterAddress(meterID)
}

// MeterAddress returns the short device address derived from a meter ID:
// its last 8 characters, or the whole ID when shorter.
func MeterAddress(meterID string) string {
	if len(meterID) <= meterAddressLen {
		return meterID
	}
	return meterID[len(meterID)-meterAddressLen:]
}

// MeterIDFromData extracts the meter ID segment from a central data
// topic (<main>/<meter_id>/<kind>): the second-to-last segment.
//
// Returns false for topics with too few segments.
func MeterIDFromData(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < minDataTopicParts {
		return "", false
	}
	return parts[len(parts)-2], true
}
