// Package logging provides structured logging for UC Remote Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the CLI and the serve daemon.
//
// # Features
//
//   - JSON output for the daemon (machine-parsable)
//   - Text output for interactive CLI use
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Logs go to stderr by default so stdout stays clean for command output
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	sess := session.New(sessCfg, transport, session.WithLogger(logger.With("component", "session")))
//
// # Security
//
// Never log API keys, PINs or JWT secrets. Log the key id or label instead.
package logging
