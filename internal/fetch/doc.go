// Package fetch downloads stream segments with bounded concurrency,
// per-segment timeouts, and retry with exponential backoff.
package fetch
