// Package daemon runs the queue workflow as a long-lived background process
// guarded by a single-instance lock file.
package daemon
