package ffmpeg

import (
	"fmt"
	"os"

	"github.com/dhowden/tag"
)

// VerifyTags reads the finished file back and checks that the title and
// artist tags landed. Callers treat a failure here as a warning; the audio
// itself is already written.
func VerifyTags(path string, want map[string]string) error {
	if len(want) == 0 {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open output for tag check: %w", err)
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		return fmt.Errorf("read tags: %w", err)
	}
	if title := want["title"]; title != "" && meta.Title() != title {
		return fmt.Errorf("title tag mismatch: got %q, want %q", meta.Title(), title)
	}
	if artist := want["artist"]; artist != "" && meta.Artist() != artist {
		return fmt.Errorf("artist tag mismatch: got %q, want %q", meta.Artist(), artist)
	}
	return nil
}
