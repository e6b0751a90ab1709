package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"airshift/internal/fetch"
)

// Spool accumulates segment payloads on disk so a long program never has to
// sit fully in memory. Payloads may arrive in any order; each lands in its
// own chunk file keyed by segment index.
type Spool struct {
	dir string

	mu      sync.Mutex
	indices map[int]chunkInfo
	closed  bool
}

type chunkInfo struct {
	path    string
	size    int64
	retries int
}

// NewSpool creates a spool rooted in a fresh subdirectory of dir.
func NewSpool(dir string) (*Spool, error) {
	spoolDir, err := os.MkdirTemp(dir, "segments-")
	if err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &Spool{
		dir:     spoolDir,
		indices: make(map[int]chunkInfo),
	}, nil
}

// Dir returns the spool's directory.
func (s *Spool) Dir() string {
	return s.dir
}

// Add stores one payload. Safe for concurrent use. A duplicate index
// overwrites the earlier chunk.
func (s *Spool) Add(payload fetch.Payload) error {
	data := stripTagPrefix(payload.Bytes)
	path := filepath.Join(s.dir, fmt.Sprintf("seg-%06d.chunk", payload.Index))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("spool segment %d: %w", payload.Index, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("spool segment %d: spool closed", payload.Index)
	}
	s.indices[payload.Index] = chunkInfo{
		path:    path,
		size:    int64(len(data)),
		retries: payload.RetryCount,
	}
	return nil
}

// Count returns the number of spooled segments.
func (s *Spool) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.indices)
}

// Close removes the spool directory and every chunk in it.
func (s *Spool) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return os.RemoveAll(s.dir)
}
