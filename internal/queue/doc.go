// Package queue persists recording jobs in SQLite and models their
// lifecycle from pending through resolving, fetching, and transcoding to a
// terminal completed, failed, or review state. The daemon's workflow manager
// drains the queue; the CLI inspects and edits it through the same store.
package queue
