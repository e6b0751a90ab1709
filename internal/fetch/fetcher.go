package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"airshift/internal/playlist"
)

// Config tunes segment acquisition.
type Config struct {
	// MaxConcurrency bounds simultaneously in-flight downloads.
	MaxConcurrency int
	// SegmentTimeout bounds each individual request attempt.
	SegmentTimeout time.Duration
	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts int
	// BackoffBase is the first retry delay; it doubles per retry.
	BackoffBase time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 8
	}
	if c.SegmentTimeout <= 0 {
		c.SegmentTimeout = 30 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	return c
}

// Payload is one fetched segment. Bytes are never mutated after creation.
type Payload struct {
	Index            int
	Bytes            []byte
	DownloadDuration time.Duration
	RetryCount       int
}

// Sink receives payloads as they complete, in arbitrary order. Implementations
// must be safe for concurrent use; the fetcher calls it from worker goroutines.
type Sink func(Payload) error

// Stats summarizes one FetchAll run.
type Stats struct {
	Total         int
	Downloaded    int
	FailedIndices []int
	TotalBytes    int64
}

// SuccessRatio returns downloaded/total, or 0 for an empty run.
func (s Stats) SuccessRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Downloaded) / float64(s.Total)
}

// Fetcher downloads segments under a strict concurrency bound. One fetcher
// serves one recording operation; nothing is shared across operations.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	headers  map[string]string
	progress func(done, total int)
}

// Option configures the fetcher.
type Option func(*Fetcher)

// WithHTTPClient supplies the HTTP client to use.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithHeaders sets headers added to every segment request.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithProgress registers a completion callback invoked after every segment
// outcome (success or exhausted retries).
func WithProgress(fn func(done, total int)) Option {
	return func(f *Fetcher) {
		f.progress = fn
	}
}

// New constructs a fetcher.
func New(cfg Config, opts ...Option) *Fetcher {
	fetcher := &Fetcher{
		cfg:    cfg.withDefaults(),
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(fetcher)
	}
	return fetcher
}

// FetchAll downloads every descriptor, delivering payloads to sink as they
// complete. Individual segment failures never fail the run; each exhausted
// segment lands in Stats.FailedIndices instead. The only error returns are
// context cancellation and sink write failures.
func (f *Fetcher) FetchAll(ctx context.Context, descriptors []playlist.SegmentDescriptor, sink Sink) (Stats, error) {
	stats := Stats{Total: len(descriptors)}
	if len(descriptors) == 0 {
		return stats, nil
	}

	var (
		mu     sync.Mutex
		done   int
		failed []int
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.cfg.MaxConcurrency)

	for _, descriptor := range descriptors {
		group.Go(func() error {
			payload, err := f.fetchSegment(groupCtx, descriptor)
			if err != nil {
				// Only cancellation of the whole run aborts the group. A
				// per-attempt deadline that survives retry exhaustion is an
				// ordinary segment failure.
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				mu.Lock()
				failed = append(failed, descriptor.Index)
				done++
				completed := done
				mu.Unlock()
				f.reportProgress(completed, stats.Total)
				return nil
			}
			if err := sink(payload); err != nil {
				return fmt.Errorf("deliver segment %d: %w", descriptor.Index, err)
			}
			mu.Lock()
			stats.Downloaded++
			stats.TotalBytes += int64(len(payload.Bytes))
			done++
			completed := done
			mu.Unlock()
			f.reportProgress(completed, stats.Total)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return stats, err
	}

	sort.Ints(failed)
	stats.FailedIndices = failed
	return stats, nil
}

// fetchSegment attempts one segment with retry and exponential backoff.
func (f *Fetcher) fetchSegment(ctx context.Context, descriptor playlist.SegmentDescriptor) (Payload, error) {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= f.cfg.RetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Payload{}, err
		}
		if attempt > 0 {
			delay := f.cfg.BackoffBase << (attempt - 1)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Payload{}, ctx.Err()
			case <-timer.C:
			}
		}

		body, err := f.fetchOnce(ctx, descriptor.URL)
		if err != nil {
			lastErr = err
			continue
		}
		return Payload{
			Index:            descriptor.Index,
			Bytes:            body,
			DownloadDuration: time.Since(start),
			RetryCount:       attempt,
		}, nil
	}

	if lastErr == nil {
		lastErr = errors.New("download failed")
	}
	return Payload{}, fmt.Errorf("segment %d: %w", descriptor.Index, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.SegmentTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Per-attempt deadline expiry is retryable; only surface cancellation
		// of the whole operation.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	// The protocol never legitimately serves empty segments; treat one as a
	// transient fault and retry.
	if len(body) == 0 {
		return nil, errors.New("empty segment body")
	}
	return body, nil
}

func (f *Fetcher) reportProgress(done, total int) {
	if f.progress != nil {
		f.progress(done, total)
	}
}
