// Package logging provides structured logging for the KPM33B bridge
// and config sender.
//
// This package wraps Go's standard log/slog package so both binaries
// log consistently to stdout/stderr for journalctl management.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Alert() for operational alerts consumed by monitoring
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
package logging
