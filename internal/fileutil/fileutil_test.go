package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o600); err != nil {
		t.Fatalf("write src: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("copy: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("dst = %q, %v", data, err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatal("copy must not remove source")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "nested", "dst.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("move must remove source")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("dst = %q, %v", data, err)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Morning News", "Morning News"},
		{"path separators", "late/night\\show", "late_night_show"},
		{"windows reserved", `what? "when": <where> | *`, "what_ _when_ _where_ _ _"},
		{"collapses whitespace", "  deep   space \t nine  ", "deep space nine"},
		{"fullwidth punctuation", "ラジオ！深夜：特集", "ラジオ!深夜_特集"},
		{"empty", "   ", "program"},
		{"trailing dots", "finale...", "finale"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeName(tc.in); got != tc.want {
				t.Fatalf("SanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRecordingFileName(t *testing.T) {
	got := RecordingFileName("TBS", "Evening Show", "20260820-2100", "mp3")
	if got != "TBS_20260820-2100_Evening Show.mp3" {
		t.Fatalf("name = %q", got)
	}

	got = RecordingFileName("", "Evening Show", "", ".mp3")
	if got != "Evening Show.mp3" {
		t.Fatalf("name = %q", got)
	}
}
