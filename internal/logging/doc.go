// Package logging builds the slog loggers used across vodstitch.
//
// Two output formats are supported: a compact console format for
// interactive use and JSON for log shippers. Loggers write to stdout plus
// the run log file under the configured log directory. Helper constructors
// (String, Int64, Error, ...) keep call sites terse and consistent.
package logging
