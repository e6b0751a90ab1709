package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// ProgressUpdate captures transcode progress events.
type ProgressUpdate struct {
	OutTime time.Duration
	Speed   string
}

// Request describes one transcode.
type Request struct {
	InputPath   string
	OutputPath  string
	Format      string
	BitrateKbps int
	Tags        map[string]string
}

// Client defines transcoding behaviour.
type Client interface {
	Transcode(ctx context.Context, req Request, progress func(ProgressUpdate)) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line encoder.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// codecArgs returns the codec and container flags for a target format. The
// source stream is packed AAC, so the aac target is a pure remux.
func codecArgs(format string, bitrateKbps int) ([]string, error) {
	bitrate := fmt.Sprintf("%dk", bitrateKbps)
	switch format {
	case "mp3":
		return []string{"-c:a", "libmp3lame", "-b:a", bitrate, "-f", "mp3"}, nil
	case "aac":
		return []string{"-c:a", "copy", "-f", "adts"}, nil
	case "m4a":
		return []string{"-c:a", "copy", "-f", "mp4"}, nil
	case "flac":
		return []string{"-c:a", "flac", "-f", "flac"}, nil
	case "opus":
		return []string{"-c:a", "libopus", "-b:a", bitrate, "-f", "ogg"}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// SupportsTags reports whether a format's container can carry metadata tags.
// Raw ADTS output has nowhere to put them.
func SupportsTags(format string) bool {
	return format != "aac"
}

// Transcode runs ffmpeg over the assembled stream. Metadata tags ride along
// in the same invocation when the container supports them.
func (c *CLI) Transcode(ctx context.Context, req Request, progress func(ProgressUpdate)) error {
	if req.InputPath == "" {
		return errors.New("input path required")
	}
	if req.OutputPath == "" {
		return errors.New("output path required")
	}

	codec, err := codecArgs(req.Format, req.BitrateKbps)
	if err != nil {
		return err
	}

	args := []string{"-hide_banner", "-nostdin", "-y", "-i", req.InputPath}
	args = append(args, codec...)
	if SupportsTags(req.Format) {
		for _, key := range sortedTagKeys(req.Tags) {
			args = append(args, "-metadata", key+"="+req.Tags[key])
		}
	}
	args = append(args, "-progress", "pipe:1", "-loglevel", "error", req.OutputPath)

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	update := ProgressUpdate{}
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us":
			if us, err := strconv.ParseInt(value, 10, 64); err == nil {
				update.OutTime = time.Duration(us) * time.Microsecond
			}
		case "speed":
			update.Speed = value
		case "progress":
			if progress != nil {
				progress(update)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read ffmpeg output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, firstLine(detail))
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func sortedTagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var _ Client = (*CLI)(nil)
