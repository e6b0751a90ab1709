package playlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"airshift/internal/services/radiko"
)

const (
	timefreeURL = "https://radiko.jp/v2/api/ts/playlist.m3u8"

	// The service encodes program windows as fixed-width local timestamps.
	timestampLayout = "20060102150405"

	// Playlist content for a historical window is static, so a couple of
	// retries cover transient faults without a backoff schedule.
	fetchAttempts = 3
)

var (
	// ErrFetch indicates the manifest or chunklist could not be retrieved.
	ErrFetch = errors.New("playlist fetch failed")
	// ErrParse indicates a retrieved playlist was missing expected structure.
	ErrParse = errors.New("playlist parse failed")
)

// SegmentDescriptor locates one media segment in final playback order.
type SegmentDescriptor struct {
	Index           int           `json:"index"`
	URL             string        `json:"url"`
	NominalDuration time.Duration `json:"nominal_duration"`
}

// Request names the program window to resolve.
type Request struct {
	StationID string
	Start     time.Time
	End       time.Time
}

// Resolver expands a program window into an ordered segment list by walking
// the two-stage playlist chain: the timefree manifest references a single
// chunklist, which enumerates the media segments.
type Resolver struct {
	baseURL string
	client  *http.Client
}

// Option configures the resolver.
type Option func(*Resolver)

// WithBaseURL overrides the manifest endpoint (used in tests).
func WithBaseURL(base string) Option {
	return func(r *Resolver) {
		if base != "" {
			r.baseURL = base
		}
	}
}

// WithHTTPClient supplies the HTTP client to use.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		if client != nil {
			r.client = client
		}
	}
}

// NewResolver constructs a resolver with the given per-request timeout.
func NewResolver(timeout time.Duration, opts ...Option) *Resolver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	resolver := &Resolver{
		baseURL: timefreeURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(resolver)
	}
	return resolver
}

// FormatTimestamp renders t in the fixed-width wire format.
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Resolve fetches the manifest for the window, follows the embedded chunklist
// reference, and returns segment descriptors in playback order.
func (r *Resolver) Resolve(ctx context.Context, req Request, capability radiko.Capability) ([]SegmentDescriptor, error) {
	if req.StationID == "" {
		return nil, fmt.Errorf("%w: empty station id", ErrParse)
	}
	if !req.Start.Before(req.End) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", ErrParse, req.Start, req.End)
	}

	manifestURL := r.manifestURL(req)
	headers := map[string]string{
		"X-Radiko-AuthToken": capability.Token,
		"X-Radiko-AreaId":    capability.AreaID,
	}

	manifest, err := r.fetchText(ctx, manifestURL, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrFetch, err)
	}

	chunklistURL, err := firstMediaLine(manifest)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest has no chunklist reference", ErrParse)
	}

	chunklist, err := r.fetchText(ctx, chunklistURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chunklist: %w", ErrFetch, err)
	}

	// A syntactically valid chunklist with zero entries is left for the
	// caller to judge; it usually means the window fell outside the replay
	// horizon rather than a transport fault.
	return parseChunklist(chunklist), nil
}

func (r *Resolver) manifestURL(req Request) string {
	query := url.Values{}
	query.Set("station_id", req.StationID)
	query.Set("l", "15")
	query.Set("ft", FormatTimestamp(req.Start))
	query.Set("to", FormatTimestamp(req.End))
	return r.baseURL + "?" + query.Encode()
}

func (r *Resolver) fetchText(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := r.fetchOnce(ctx, rawURL, headers)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (r *Resolver) fetchOnce(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	text := string(body)
	if strings.TrimSpace(text) == "expired" {
		return "", errors.New("window expired")
	}
	return text, nil
}
