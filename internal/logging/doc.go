// Package logging builds the slog loggers used across the daemon and CLI.
//
// Two output formats are supported: a compact console format for interactive
// use and JSON for log shipping. Attr aliases and canonical field names keep
// state-transition events consistent so a path or attempt count is always
// logged under the same key.
package logging
