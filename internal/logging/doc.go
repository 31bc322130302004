// Package logging assembles structured slog loggers and formatting helpers used
// across reelnotes.
//
// It owns the console and JSON handlers, mirrors records into the log file
// under paths.log_dir, and exposes context-aware helpers so stage code can
// tag log lines with job IDs, stages, users, and correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
