package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/ffmpeg"))
	if cli.binary != "/opt/ffmpeg" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
}

func TestTranscodeRequiresInput(t *testing.T) {
	cli := NewCLI()
	err := cli.Transcode(context.Background(), Request{OutputPath: "/tmp/out.mp3", Format: "mp3", BitrateKbps: 192}, nil)
	if err == nil {
		t.Fatal("expected error when input path is empty")
	}
}

func TestTranscodeRequiresOutput(t *testing.T) {
	cli := NewCLI()
	err := cli.Transcode(context.Background(), Request{InputPath: "/tmp/in.bin", Format: "mp3", BitrateKbps: 192}, nil)
	if err == nil {
		t.Fatal("expected error when output path is empty")
	}
}

func TestTranscodeRejectsUnknownFormat(t *testing.T) {
	cli := NewCLI()
	err := cli.Transcode(context.Background(), Request{
		InputPath:  "/tmp/in.bin",
		OutputPath: "/tmp/out.wav",
		Format:     "wav",
	}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestTranscodeBuildsExpectedArguments(t *testing.T) {
	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE=success")
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})

	cli := NewCLI()
	err := cli.Transcode(context.Background(), Request{
		InputPath:   "/tmp/stream.bin",
		OutputPath:  "/tmp/out.mp3",
		Format:      "mp3",
		BitrateKbps: 192,
		Tags: map[string]string{
			"title":  "Evening Show",
			"artist": "Host A, Host B",
		},
	}, nil)
	if err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}

	joined := strings.Join(capturedArgs, " ")
	for _, want := range []string{
		"-i /tmp/stream.bin",
		"-c:a libmp3lame",
		"-b:a 192k",
		"-metadata artist=Host A, Host B",
		"-metadata title=Evening Show",
		"/tmp/out.mp3",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("arguments %q missing %q", joined, want)
		}
	}
	// Tag arguments are emitted in sorted key order for stable invocations.
	if strings.Index(joined, "artist=") > strings.Index(joined, "title=") {
		t.Fatalf("tags out of order: %q", joined)
	}
}

func TestTranscodeOmitsTagsForRawStream(t *testing.T) {
	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE=success")
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})

	cli := NewCLI()
	err := cli.Transcode(context.Background(), Request{
		InputPath:  "/tmp/stream.bin",
		OutputPath: "/tmp/out.aac",
		Format:     "aac",
		Tags:       map[string]string{"title": "ignored"},
	}, nil)
	if err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}
	joined := strings.Join(capturedArgs, " ")
	if strings.Contains(joined, "-metadata") {
		t.Fatalf("raw stream invocation carries metadata flags: %q", joined)
	}
	if !strings.Contains(joined, "-c:a copy") {
		t.Fatalf("aac output should remux, got %q", joined)
	}
}

func TestTranscodeReportsProgress(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE=progress")
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})

	var updates []ProgressUpdate
	cli := NewCLI()
	err := cli.Transcode(context.Background(), Request{
		InputPath:   "/tmp/stream.bin",
		OutputPath:  "/tmp/out.mp3",
		Format:      "mp3",
		BitrateKbps: 128,
	}, func(update ProgressUpdate) {
		updates = append(updates, update)
	})
	if err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}
	if len(updates) == 0 {
		t.Fatal("expected at least one progress update")
	}
	if updates[len(updates)-1].OutTime <= 0 {
		t.Fatalf("final update has no out time: %+v", updates[len(updates)-1])
	}
}

func TestTranscodeSurfacesEncoderFailure(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE=fail")
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})

	cli := NewCLI()
	err := cli.Transcode(context.Background(), Request{
		InputPath:   "/tmp/stream.bin",
		OutputPath:  "/tmp/out.mp3",
		Format:      "mp3",
		BitrateKbps: 128,
	}, nil)
	if err == nil {
		t.Fatal("expected encoder failure to surface")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("error %q missing stderr detail", err)
	}
}

func TestSupportsTags(t *testing.T) {
	if SupportsTags("aac") {
		t.Fatal("raw ADTS output cannot carry tags")
	}
	for _, format := range []string{"mp3", "m4a", "flac", "opus"} {
		if !SupportsTags(format) {
			t.Fatalf("format %s should carry tags", format)
		}
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		fmt.Println("progress=end")
		os.Exit(0)
	case "progress":
		fmt.Println("out_time_us=1000000")
		fmt.Println("speed=32.1x")
		fmt.Println("progress=continue")
		fmt.Println("out_time_us=2000000")
		fmt.Println("progress=end")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "[mp3 @ 0x0] Invalid data found when processing input")
		os.Exit(1)
	default:
		os.Exit(2)
	}
}
