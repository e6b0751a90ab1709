// Package logging builds the slog loggers used across airshift.
//
// It provides a human-oriented console handler, a JSON handler for log files
// and machine consumption, context-derived attribute enrichment, and typed
// attribute helpers so call sites stay consistent about field names.
package logging
