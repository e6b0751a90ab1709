package assemble

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// ErrEmpty is returned when no segments at all are available to assemble.
var ErrEmpty = errors.New("no segments to assemble")

// Stream describes the contiguous output of one assembly.
type Stream struct {
	Path           string
	TotalBytes     int64
	SegmentCount   int
	MissingIndices []int
	TotalRetries   int
}

// Assemble concatenates the spooled segments in ascending index order into a
// single stream file under dir. expected is the full descriptor index set;
// any index missing from the spool is recorded, not fatal. Chunk files are
// removed as they are consumed.
func Assemble(spool *Spool, dir string, expected []int) (Stream, error) {
	spool.mu.Lock()
	spool.closed = true
	chunks := make(map[int]chunkInfo, len(spool.indices))
	for index, info := range spool.indices {
		chunks[index] = info
	}
	spool.mu.Unlock()

	if len(chunks) == 0 {
		return Stream{}, ErrEmpty
	}

	out, err := os.CreateTemp(dir, "stream-*.bin")
	if err != nil {
		return Stream{}, fmt.Errorf("create stream file: %w", err)
	}
	outPath := out.Name()

	ordered := make([]int, 0, len(expected))
	ordered = append(ordered, expected...)
	sort.Ints(ordered)

	stream := Stream{Path: outPath}
	for _, index := range ordered {
		info, ok := chunks[index]
		if !ok {
			stream.MissingIndices = append(stream.MissingIndices, index)
			continue
		}
		if err := appendChunk(out, info.path); err != nil {
			out.Close()
			os.Remove(outPath)
			return Stream{}, fmt.Errorf("append segment %d: %w", index, err)
		}
		os.Remove(info.path)
		stream.TotalBytes += info.size
		stream.SegmentCount++
		stream.TotalRetries += info.retries
	}

	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return Stream{}, fmt.Errorf("finalize stream file: %w", err)
	}
	if stream.SegmentCount == 0 {
		os.Remove(outPath)
		return Stream{}, ErrEmpty
	}
	return stream, nil
}

func appendChunk(dst *os.File, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(dst, src)
	return err
}

// CleanupStream removes a stream file, tolerating absence.
func CleanupStream(stream Stream) {
	if stream.Path != "" {
		os.Remove(stream.Path)
	}
}
