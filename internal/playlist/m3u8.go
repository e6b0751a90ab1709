package playlist

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// defaultSegmentDuration applies when a chunklist omits EXTINF tags.
const defaultSegmentDuration = 5 * time.Second

func firstMediaLine(m3u8 string) (string, error) {
	for _, line := range splitLines(m3u8) {
		if !strings.HasPrefix(line, "#") {
			return line, nil
		}
	}
	return "", errors.New("no media lines")
}

// parseChunklist walks the chunklist line-by-line, pairing each URI with the
// preceding EXTINF duration when present.
func parseChunklist(m3u8 string) []SegmentDescriptor {
	var descriptors []SegmentDescriptor
	pending := defaultSegmentDuration
	for _, line := range splitLines(m3u8) {
		if strings.HasPrefix(line, "#EXTINF:") {
			if d, ok := parseExtinf(line); ok {
				pending = d
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		descriptors = append(descriptors, SegmentDescriptor{
			Index:           len(descriptors),
			URL:             line,
			NominalDuration: pending,
		})
		pending = defaultSegmentDuration
	}
	return descriptors
}

func parseExtinf(line string) (time.Duration, bool) {
	value := strings.TrimPrefix(line, "#EXTINF:")
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		value = value[:idx]
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
