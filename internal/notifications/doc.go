// Package notifications sends recording lifecycle events to an ntfy topic
// when one is configured, and degrades to a no-op otherwise.
package notifications
