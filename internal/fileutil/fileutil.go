package fileutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// MoveFile renames src to dst, falling back to copy+remove across filesystems.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

var unsafeNameReplacer = strings.NewReplacer(
	"\\", "_",
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	"\x00", "_",
)

// SanitizeName returns a filesystem-safe single path element. The input is
// NFKC-normalized first so full-width punctuation common in Japanese program
// titles folds into its ASCII equivalents before replacement.
func SanitizeName(value string) string {
	s := norm.NFKC.String(strings.TrimSpace(value))
	s = unsafeNameReplacer.Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, ". ")
	if s == "" {
		return "program"
	}
	return s
}

// RecordingFileName builds "<station>_<YYYYMMDDHHMM>_<title>.<ext>" for a
// recording that has no caller-specified output path.
func RecordingFileName(stationID, title, timestamp, ext string) string {
	parts := make([]string, 0, 3)
	if stationID = SanitizeName(stationID); stationID != "program" {
		parts = append(parts, stationID)
	}
	if timestamp = strings.TrimSpace(timestamp); timestamp != "" {
		parts = append(parts, timestamp)
	}
	parts = append(parts, SanitizeName(title))
	return strings.Join(parts, "_") + "." + strings.TrimPrefix(ext, ".")
}
