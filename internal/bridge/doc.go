// Package bridge routes KPM33B meter telemetry between brokers.
//
// The bridge subscribes to raw seconds- and minutes-level data on the
// internal broker, validates and reshapes each message, and republishes
// the simplified record to the central broker. The first message from a
// meter additionally triggers retained Home Assistant autodiscovery
// publishes announcing the meter's power and energy sensors.
//
// # Failure model
//
// Telemetry is loss-tolerant. Undecodable bodies, split payloads, and
// publish failures are logged and the message discarded; nothing here
// is fatal or retried. Discovery is at-most-once per process lifetime:
// a meter is marked announced before its configs are published and is
// never re-announced, even if that publish fails.
package bridge
