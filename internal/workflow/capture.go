package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"airshift/internal/assemble"
	"airshift/internal/config"
	"airshift/internal/fetch"
	"airshift/internal/playlist"
	"airshift/internal/queue"
	"airshift/internal/recording"
	"airshift/internal/services"
	"airshift/internal/services/radiko"
	"airshift/internal/stage"
)

// CaptureHandler downloads the resolved playlist's segments and assembles
// them into a continuous stream file in the staging area.
type CaptureHandler struct {
	cfg  *config.Config
	auth recording.AuthProvider
}

// NewCaptureHandler builds the capture stage.
func NewCaptureHandler(cfg *config.Config) *CaptureHandler {
	authTimeout := time.Duration(cfg.Radiko.AuthTimeout) * time.Second
	return &CaptureHandler{
		cfg:  cfg,
		auth: radiko.NewAuthClient(authTimeout),
	}
}

// NewCaptureHandlerWith wires an explicit auth provider (used in tests).
func NewCaptureHandlerWith(cfg *config.Config, auth recording.AuthProvider) *CaptureHandler {
	return &CaptureHandler{cfg: cfg, auth: auth}
}

// Prepare verifies the item carries a resolved playlist.
func (h *CaptureHandler) Prepare(ctx context.Context, item *queue.Item) error {
	if item.PlaylistJSON == "" {
		return services.Wrap(services.ErrValidation, "capture", "prepare", "item has no resolved playlist", nil)
	}
	return nil
}

// Execute fetches every segment under the configured concurrency bound and
// writes the ordered stream file. Individual segment losses are tolerated up
// to the success-ratio gate.
func (h *CaptureHandler) Execute(ctx context.Context, item *queue.Item) error {
	var descriptors []playlist.SegmentDescriptor
	if err := json.Unmarshal([]byte(item.PlaylistJSON), &descriptors); err != nil {
		return services.Wrap(services.ErrValidation, "capture", "playlist", "stored playlist is unreadable", err)
	}
	if len(descriptors) == 0 {
		item.ReasonCode = recording.ReasonAssembly
		return services.Wrap(services.ErrValidation, "capture", "playlist", "stored playlist is empty", nil)
	}

	// Tokens are short-lived; each capture run performs its own handshake
	// rather than trusting one persisted at resolve time.
	capability, err := h.auth.Authorize(ctx, h.cfg.Radiko.AreaID)
	if err != nil {
		item.ReasonCode = recording.ReasonAuth
		return services.Wrap(services.ErrAuth, "capture", "authorize", "token handshake failed", err)
	}

	spool, err := assemble.NewSpool(h.cfg.Paths.StagingDir)
	if err != nil {
		item.ReasonCode = recording.ReasonAssembly
		return services.Wrap(services.ErrTransient, "capture", "spool", "cannot create segment spool", err)
	}
	defer spool.Close()

	fetcher := fetch.New(fetch.Config{
		MaxConcurrency: h.cfg.Recording.MaxConcurrency,
		SegmentTimeout: time.Duration(h.cfg.Recording.SegmentTimeoutSeconds) * time.Second,
		RetryAttempts:  h.cfg.Recording.RetryAttempts,
		BackoffBase:    time.Duration(h.cfg.Recording.RetryBackoffSeconds) * time.Second,
	}, fetch.WithHeaders(map[string]string{
		"X-Radiko-AuthToken": capability.Token,
		"X-Radiko-AreaId":    capability.AreaID,
	}))

	stats, err := fetcher.FetchAll(ctx, descriptors, spool.Add)
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		item.ReasonCode = recording.ReasonAssembly
		return services.Wrap(services.ErrTransient, "capture", "fetch", "segment download aborted", err)
	}

	item.TotalSegments = stats.Total
	item.DownloadedSegments = stats.Downloaded
	item.FailedSegments = len(stats.FailedIndices)
	item.TotalBytes = stats.TotalBytes

	indices := make([]int, len(descriptors))
	for i, descriptor := range descriptors {
		indices[i] = descriptor.Index
	}
	stream, err := assemble.Assemble(spool, h.cfg.Paths.StagingDir, indices)
	if err != nil {
		item.ReasonCode = recording.ReasonAssembly
		return services.Wrap(services.ErrTransient, "capture", "assemble", "stream assembly failed", err)
	}

	ratio := stats.SuccessRatio()
	if ratio < h.cfg.Recording.MinSuccessRatio {
		assemble.CleanupStream(stream)
		item.ReasonCode = recording.ReasonSegmentShortfall
		return services.Wrap(services.ErrTransient, "capture", "threshold",
			fmt.Sprintf("downloaded %d of %d segments (%.0f%%), below minimum %.0f%%",
				stats.Downloaded, stats.Total, ratio*100, h.cfg.Recording.MinSuccessRatio*100), nil)
	}

	item.StreamFile = stream.Path
	item.ProgressMessage = fmt.Sprintf("%d/%d segments captured", stats.Downloaded, stats.Total)
	return nil
}

// HealthCheck verifies the staging area is usable.
func (h *CaptureHandler) HealthCheck(ctx context.Context) stage.Health {
	if h.cfg.Paths.StagingDir == "" {
		return stage.Unhealthy("capture", "staging directory not configured")
	}
	return stage.Healthy("capture")
}
