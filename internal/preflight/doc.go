// Package preflight validates directories, external binaries, and replay
// service reachability before the daemon or a recording starts.
package preflight
