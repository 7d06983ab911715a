// Package configsender pushes upload-frequency configuration to KPM33B
// meters over the internal broker.
//
// Meters are discovered passively by watching seconds-level telemetry
// on the central broker; the first sighting of a meter ID triggers a
// pair of interval commands (rate and cumulative), each tagged with a
// unique operation id and confirmed by an acknowledgement message from
// the meter. Missing acknowledgements are escalated through the
// logger's alert channel but are never retried; the next settings
// change issues a fresh command.
//
// A poller watches the settings source for changes and re-pushes the
// reloaded configuration to every known meter.
package configsender
