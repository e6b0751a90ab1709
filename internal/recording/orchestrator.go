package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"airshift/internal/assemble"
	"airshift/internal/config"
	"airshift/internal/fetch"
	"airshift/internal/fileutil"
	"airshift/internal/logging"
	"airshift/internal/playlist"
	"airshift/internal/services"
	"airshift/internal/services/ffmpeg"
	"airshift/internal/services/radiko"
)

// AuthProvider issues an access capability for the replay service.
type AuthProvider interface {
	Authorize(ctx context.Context, areaOverride string) (radiko.Capability, error)
}

// PlaylistResolver turns a station/time window into ordered segment
// descriptors.
type PlaylistResolver interface {
	Resolve(ctx context.Context, req playlist.Request, capability radiko.Capability) ([]playlist.SegmentDescriptor, error)
}

// Orchestrator sequences playlist resolution, segment fetch, assembly, and
// transcode for one recording at a time. Instances hold no per-operation
// state; concurrent Record calls are independent.
type Orchestrator struct {
	cfg        *config.Config
	logger     *slog.Logger
	auth       AuthProvider
	resolver   PlaylistResolver
	transcoder ffmpeg.Client
	verifyTags func(path string, want map[string]string) error
	progress   func(done, total int)
	now        func() time.Time
}

// OrchestratorOption overrides a collaborator, mainly for tests.
type OrchestratorOption func(*Orchestrator)

// WithAuthProvider substitutes the auth client.
func WithAuthProvider(auth AuthProvider) OrchestratorOption {
	return func(o *Orchestrator) {
		if auth != nil {
			o.auth = auth
		}
	}
}

// WithResolver substitutes the playlist resolver.
func WithResolver(resolver PlaylistResolver) OrchestratorOption {
	return func(o *Orchestrator) {
		if resolver != nil {
			o.resolver = resolver
		}
	}
}

// WithTranscoder substitutes the encoder client.
func WithTranscoder(client ffmpeg.Client) OrchestratorOption {
	return func(o *Orchestrator) {
		if client != nil {
			o.transcoder = client
		}
	}
}

// WithTagVerifier substitutes the post-encode tag check.
func WithTagVerifier(fn func(path string, want map[string]string) error) OrchestratorOption {
	return func(o *Orchestrator) {
		if fn != nil {
			o.verifyTags = fn
		}
	}
}

// WithProgress registers a segment completion callback.
func WithProgress(fn func(done, total int)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// NewOrchestrator builds an orchestrator with production collaborators.
func NewOrchestrator(cfg *config.Config, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	authTimeout := time.Duration(cfg.Radiko.AuthTimeout) * time.Second
	segmentTimeout := time.Duration(cfg.Recording.SegmentTimeoutSeconds) * time.Second
	orch := &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		auth:       radiko.NewAuthClient(authTimeout),
		resolver:   playlist.NewResolver(segmentTimeout),
		transcoder: ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary())),
		verifyTags: ffmpeg.VerifyTags,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch
}

// Record runs the full pipeline for one request. Expected failures of any
// kind are reported through the returned Result, never as an error; the error
// return is reserved for invariant violations.
func (o *Orchestrator) Record(ctx context.Context, request Request) Result {
	started := time.Now()
	requestID := uuid.NewString()
	ctx = services.WithRequestID(ctx, requestID)
	ctx = services.WithStation(ctx, request.StationID)

	log := o.logger.With(
		slog.String(logging.FieldCorrelationID, requestID),
		slog.String(logging.FieldStation, request.StationID),
	)

	result := Result{State: StateIdle, OutputPath: request.OutputPath}
	fail := func(reason string, err error) Result {
		result.Success = false
		result.ReasonCode = reason
		if err != nil {
			result.ErrorMessages = append(result.ErrorMessages, err.Error())
		}
		result.Elapsed = time.Since(started)
		log.Error("recording failed",
			slog.String("reason", reason),
			slog.String(logging.FieldStage, string(result.State)),
			logging.Error(err))
		return result
	}

	if err := request.Validate(); err != nil {
		return fail(ReasonInvalidRequest, err)
	}
	// The replay service only serves finished broadcasts inside its horizon;
	// reject anything else before touching the network.
	if err := request.ValidateWindow(o.now(), o.cfg.Radiko.ReplayWindowDays); err != nil {
		return fail(ReasonInvalidRequest, err)
	}

	log.Info("recording started",
		slog.Time("window_start", request.Start),
		slog.Time("window_end", request.End),
		slog.String("format", request.Format))

	// Resolving.
	result.State = StateResolving
	capability, err := o.auth.Authorize(ctx, o.cfg.Radiko.AreaID)
	if err != nil {
		if canceled(ctx, err) {
			return fail(ReasonCancelled, err)
		}
		return fail(ReasonAuth, err)
	}
	descriptors, err := o.resolver.Resolve(ctx, playlist.Request{
		StationID: request.StationID,
		Start:     request.Start,
		End:       request.End,
	}, capability)
	if err != nil {
		switch {
		case canceled(ctx, err):
			return fail(ReasonCancelled, err)
		case errors.Is(err, playlist.ErrParse):
			return fail(ReasonPlaylistParse, err)
		default:
			return fail(ReasonPlaylistFetch, err)
		}
	}
	result.TotalSegments = len(descriptors)
	if len(descriptors) == 0 {
		return fail(ReasonAssembly, errors.New("playlist resolved to zero segments"))
	}
	log.Info("playlist resolved", slog.Int("segments", len(descriptors)))

	// The working area scopes every intermediate artifact; it is removed on
	// all exit paths including cancellation.
	workDir, err := os.MkdirTemp(o.cfg.Paths.StagingDir, "recording-")
	if err != nil {
		return fail(ReasonAssembly, fmt.Errorf("create working area: %w", err))
	}
	defer os.RemoveAll(workDir)

	// Fetching.
	result.State = StateFetching
	spool, err := assemble.NewSpool(workDir)
	if err != nil {
		return fail(ReasonAssembly, err)
	}
	defer spool.Close()

	fetcher := fetch.New(fetch.Config{
		MaxConcurrency: o.cfg.Recording.MaxConcurrency,
		SegmentTimeout: time.Duration(o.cfg.Recording.SegmentTimeoutSeconds) * time.Second,
		RetryAttempts:  o.cfg.Recording.RetryAttempts,
		BackoffBase:    time.Duration(o.cfg.Recording.RetryBackoffSeconds) * time.Second,
	},
		fetch.WithHeaders(map[string]string{
			"X-Radiko-AuthToken": capability.Token,
			"X-Radiko-AreaId":    capability.AreaID,
		}),
		fetch.WithProgress(o.progress),
	)
	stats, err := fetcher.FetchAll(ctx, descriptors, spool.Add)
	if err != nil {
		if canceled(ctx, err) {
			return fail(ReasonCancelled, err)
		}
		return fail(ReasonAssembly, err)
	}
	result.DownloadedSegments = stats.Downloaded
	result.FailedSegments = len(stats.FailedIndices)
	result.TotalBytes = stats.TotalBytes
	log.Info("segments fetched",
		slog.Int("downloaded", stats.Downloaded),
		slog.Int("failed", len(stats.FailedIndices)),
		slog.Int64("bytes", stats.TotalBytes))

	// Assembling.
	result.State = StateAssembling
	indices := make([]int, len(descriptors))
	for i, descriptor := range descriptors {
		indices[i] = descriptor.Index
	}
	stream, err := assemble.Assemble(spool, workDir, indices)
	if err != nil {
		return fail(ReasonAssembly, err)
	}
	defer assemble.CleanupStream(stream)

	// The shortfall gate sits between assembly and transcode so a hopeless
	// capture never costs an encode.
	ratio := stats.SuccessRatio()
	if ratio < o.cfg.Recording.MinSuccessRatio {
		return fail(ReasonSegmentShortfall, fmt.Errorf(
			"downloaded %d of %d segments (%.0f%%), below minimum %.0f%%",
			stats.Downloaded, stats.Total, ratio*100, o.cfg.Recording.MinSuccessRatio*100))
	}

	// Transcoding. The encoder writes into the working area first; the final
	// path only ever sees a complete file.
	result.State = StateTranscoding
	if err := ctx.Err(); err != nil {
		return fail(ReasonCancelled, err)
	}
	format := request.Format
	if format == "" {
		format = o.cfg.Recording.OutputFormat
	}
	bitrate := request.BitrateKbps
	if bitrate <= 0 {
		bitrate = o.cfg.Recording.BitrateKbps
	}
	tags := request.Metadata.Tags()
	encodedPath := filepath.Join(workDir, "encoded"+filepath.Ext(request.OutputPath))

	transcodeCtx := ctx
	if o.cfg.Recording.TranscodeTimeout > 0 {
		var cancel context.CancelFunc
		transcodeCtx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.Recording.TranscodeTimeout)*time.Second)
		defer cancel()
	}
	err = o.transcoder.Transcode(transcodeCtx, ffmpeg.Request{
		InputPath:   stream.Path,
		OutputPath:  encodedPath,
		Format:      format,
		BitrateKbps: bitrate,
		Tags:        tags,
	}, nil)
	if err != nil {
		if canceled(ctx, err) {
			return fail(ReasonCancelled, err)
		}
		return fail(ReasonTranscode, err)
	}
	if info, statErr := os.Stat(encodedPath); statErr != nil || info.Size() == 0 {
		return fail(ReasonTranscode, errors.New("encoder produced no output"))
	}

	if ffmpeg.SupportsTags(format) {
		if err := o.verifyTags(encodedPath, tags); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("tag embedding: %v", err))
			log.Warn("tag verification failed", logging.Error(err))
		}
	}

	if err := os.MkdirAll(filepath.Dir(request.OutputPath), 0o755); err != nil {
		return fail(ReasonTranscode, fmt.Errorf("create output directory: %w", err))
	}
	if err := fileutil.MoveFile(encodedPath, request.OutputPath); err != nil {
		return fail(ReasonTranscode, fmt.Errorf("move final file: %w", err))
	}

	result.State = StateDone
	result.Success = true
	result.Elapsed = time.Since(started)
	log.Info("recording completed",
		slog.String("output", request.OutputPath),
		slog.Int64("bytes", stream.TotalBytes),
		slog.Duration("elapsed", result.Elapsed))
	return result
}

func canceled(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}
