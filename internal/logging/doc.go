// Package logging constructs the slog loggers used across voicebox and
// provides shared attribute helpers so log field names stay consistent.
package logging
