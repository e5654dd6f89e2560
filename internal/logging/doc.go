// Package logging assembles structured slog loggers and formatting helpers used
// across CheckProof components.
//
// It owns the console and JSON handlers, fans records out to the per-run log
// file, and exposes context-aware helpers so manager code automatically tags
// log lines with capture IDs, operations, and correlation IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
