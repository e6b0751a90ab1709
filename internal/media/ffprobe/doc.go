// Package ffprobe shells out to ffprobe for container inspection. The
// transcoder uses it to verify that an encoded recording is non-empty and
// that its duration matches the requested program window.
package ffprobe
