// Package ffmpeg wraps the ffmpeg command-line tool for transcoding an
// assembled audio stream into its final container with embedded metadata.
package ffmpeg
