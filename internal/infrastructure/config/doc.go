// Package config loads and validates configuration for the KPM33B
// bridge and config sender.
//
// Configuration is read from a single YAML file shared by both binaries.
// Defaults are applied first, then file values, then environment variable
// overrides (KPMBRIDGE_* variables for broker connection details).
//
// The config sender additionally watches the file for changes through
// FileSettings, which re-reads only the meter settings section. Change
// detection is a modification-timestamp comparison on a polling cadence,
// not a file-watch subsystem.
package config
