// Package workflow drives queued recordings through resolve, capture, and
// transcode stages, polling the queue store and persisting item state after
// every transition.
package workflow
