package ffmpeg

import (
	"context"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/dhowden/tag"

	"airshift/internal/media/ffprobe"
)

// Tests in this file run the real encoder and skip when it is not installed.

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

// synthesizeSource produces a packed AAC stream of the given length, the same
// shape an assembled capture has.
func synthesizeSource(t *testing.T, dir string, seconds int) string {
	t.Helper()
	src := filepath.Join(dir, "source.aac")
	cmd := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "sine=frequency=440:sample_rate=44100",
		"-t", strconv.Itoa(seconds),
		"-c:a", "aac", "-b:a", "64k", "-f", "adts", "-y", src)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot synthesize source audio: %v: %s", err, out)
	}
	return src
}

func TestTranscodePreservesDuration(t *testing.T) {
	requireTool(t, "ffmpeg")
	requireTool(t, "ffprobe")

	dir := t.TempDir()
	// The length of a 120-segment playlist of five-second chunks.
	const seconds = 600
	src := synthesizeSource(t, dir, seconds)
	out := filepath.Join(dir, "program.mp3")

	cli := NewCLI()
	err := cli.Transcode(context.Background(), Request{
		InputPath:   src,
		OutputPath:  out,
		Format:      "mp3",
		BitrateKbps: 128,
	}, nil)
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	result, err := ffprobe.Inspect(context.Background(), "ffprobe", out)
	if err != nil {
		t.Fatalf("inspect output: %v", err)
	}
	got := result.DurationSeconds()
	if diff := math.Abs(got - seconds); diff > seconds*0.005 {
		t.Fatalf("encoded duration %.2fs, want %ds within 0.5%%", got, seconds)
	}
}

func TestTranscodeTagEmbeddingIsRepeatable(t *testing.T) {
	requireTool(t, "ffmpeg")

	dir := t.TempDir()
	src := synthesizeSource(t, dir, 2)
	tags := map[string]string{
		"title":  "Evening Show",
		"artist": "Host A, Host B",
		"album":  "TBS Radio",
		"genre":  "Talk",
	}

	cli := NewCLI()
	outputs := []string{
		filepath.Join(dir, "first.mp3"),
		filepath.Join(dir, "second.mp3"),
	}
	for _, out := range outputs {
		err := cli.Transcode(context.Background(), Request{
			InputPath:   src,
			OutputPath:  out,
			Format:      "mp3",
			BitrateKbps: 128,
			Tags:        tags,
		}, nil)
		if err != nil {
			t.Fatalf("Transcode %s: %v", filepath.Base(out), err)
		}
		if err := VerifyTags(out, tags); err != nil {
			t.Fatalf("tags on %s: %v", filepath.Base(out), err)
		}
	}

	first := readbackTags(t, outputs[0])
	second := readbackTags(t, outputs[1])
	for key, value := range first {
		if second[key] != value {
			t.Fatalf("tag %s differs across runs: %q vs %q", key, value, second[key])
		}
	}
	if first["album"] != tags["album"] || first["genre"] != tags["genre"] {
		t.Fatalf("embedded tags = %v, want %v", first, tags)
	}
}

func readbackTags(t *testing.T, path string) map[string]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()
	meta, err := tag.ReadFrom(file)
	if err != nil {
		t.Fatalf("read tags from %s: %v", path, err)
	}
	return map[string]string{
		"title":  meta.Title(),
		"artist": meta.Artist(),
		"album":  meta.Album(),
		"genre":  meta.Genre(),
	}
}
