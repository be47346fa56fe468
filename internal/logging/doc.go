// Package logging provides structured logging for the automower tools.
//
// This package wraps a global zap logger with convenience functions. Logging
// is silent unless a level is given, so command output stays clean.
//
// # Configuration
//
//	AUTOMOWER_LOG_LEVEL=debug automower status AA:BB:CC:DD:EE:FF
//	AUTOMOWER_LOG_FILE=/var/log/automower.log automower exporter
//
// Console output goes to stderr. When AUTOMOWER_LOG_FILE is set, entries are
// also written to that file, rotated by size.
//
// # Frame Logging
//
// At debug level every request and response is dumped:
//
//	logging.LogFrame("sent", "battery-level", req)
//	logging.LogFrame("received", "battery-level", resp)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and
// SetLogger are meant to be called once at startup.
package logging
