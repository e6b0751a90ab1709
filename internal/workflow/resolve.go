package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"airshift/internal/config"
	"airshift/internal/playlist"
	"airshift/internal/queue"
	"airshift/internal/recording"
	"airshift/internal/services"
	"airshift/internal/services/radiko"
	"airshift/internal/stage"
)

// ResolveHandler authorizes against the replay service and resolves the
// item's station/time window into an ordered segment playlist.
type ResolveHandler struct {
	cfg      *config.Config
	auth     recording.AuthProvider
	resolver recording.PlaylistResolver
	registry *radiko.StationRegistry
	now      func() time.Time
}

// NewResolveHandler builds the resolve stage with production collaborators.
func NewResolveHandler(cfg *config.Config) *ResolveHandler {
	authTimeout := time.Duration(cfg.Radiko.AuthTimeout) * time.Second
	segmentTimeout := time.Duration(cfg.Recording.SegmentTimeoutSeconds) * time.Second
	return &ResolveHandler{
		cfg:      cfg,
		auth:     radiko.NewAuthClient(authTimeout),
		resolver: playlist.NewResolver(segmentTimeout),
		registry: radiko.NewStationRegistry(authTimeout),
		now:      time.Now,
	}
}

// NewResolveHandlerWith wires explicit collaborators (used in tests).
func NewResolveHandlerWith(cfg *config.Config, auth recording.AuthProvider, resolver recording.PlaylistResolver) *ResolveHandler {
	return &ResolveHandler{cfg: cfg, auth: auth, resolver: resolver, now: time.Now}
}

// Prepare validates the window against the replay horizon before any network
// work happens.
func (h *ResolveHandler) Prepare(ctx context.Context, item *queue.Item) error {
	request := recording.Request{
		StationID:  item.StationID,
		Start:      item.StartTime,
		End:        item.EndTime,
		OutputPath: item.OutputPath,
	}
	if err := request.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "resolve", "validate", "invalid recording request", err)
	}

	if err := request.ValidateWindow(h.now(), h.cfg.Radiko.ReplayWindowDays); err != nil {
		return services.Wrap(services.ErrValidation, "resolve", "validate",
			"window outside the replay service range", err)
	}
	return nil
}

// Execute performs the token handshake and playlist resolution, persisting
// the descriptor list on the item.
func (h *ResolveHandler) Execute(ctx context.Context, item *queue.Item) error {
	capability, err := h.auth.Authorize(ctx, h.cfg.Radiko.AreaID)
	if err != nil {
		item.ReasonCode = recording.ReasonAuth
		return services.Wrap(services.ErrAuth, "resolve", "authorize", "token handshake failed", err)
	}

	if h.registry != nil && item.StationID != "" {
		if _, err := h.registry.Validate(ctx, capability.AreaID, item.StationID); err != nil {
			item.ReasonCode = recording.ReasonInvalidRequest
			return services.Wrap(services.ErrValidation, "resolve", "station",
				fmt.Sprintf("station %s is not available in area %s", item.StationID, capability.AreaID), err)
		}
	}

	descriptors, err := h.resolver.Resolve(ctx, playlist.Request{
		StationID: item.StationID,
		Start:     item.StartTime,
		End:       item.EndTime,
	}, capability)
	if err != nil {
		if errors.Is(err, playlist.ErrParse) {
			item.ReasonCode = recording.ReasonPlaylistParse
		} else {
			item.ReasonCode = recording.ReasonPlaylistFetch
		}
		return services.Wrap(services.ErrTransient, "resolve", "playlist", "playlist resolution failed", err)
	}
	if len(descriptors) == 0 {
		item.ReasonCode = recording.ReasonAssembly
		return services.Wrap(services.ErrNotFound, "resolve", "playlist",
			"playlist resolved to zero segments", nil)
	}

	encoded, err := json.Marshal(descriptors)
	if err != nil {
		return fmt.Errorf("encode playlist: %w", err)
	}
	item.PlaylistJSON = string(encoded)
	item.TotalSegments = len(descriptors)
	item.ProgressMessage = fmt.Sprintf("%d segments resolved", len(descriptors))
	return nil
}

// HealthCheck reports stage readiness.
func (h *ResolveHandler) HealthCheck(ctx context.Context) stage.Health {
	if h.auth == nil || h.resolver == nil {
		return stage.Unhealthy("resolve", "missing collaborators")
	}
	return stage.Healthy("resolve")
}
