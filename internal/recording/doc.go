// Package recording sequences playlist resolution, bounded-concurrency
// segment fetch, ordered assembly, and transcoding into one record operation
// with a structured result.
package recording
