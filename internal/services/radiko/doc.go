// Package radiko implements the boundary to the radiko service: the
// auth1/auth2 capability handshake and the per-area station registry. The
// recording core consumes capabilities; it never refreshes them.
package radiko
