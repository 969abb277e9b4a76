// Package logging assembles the structured slog loggers used across setlist
// components.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes typed attribute helpers so components tag log lines
// with location, project, and scan-run identifiers consistently. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
