package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"airshift/internal/config"
	"airshift/internal/fileutil"
	"airshift/internal/logging"
	"airshift/internal/media/ffprobe"
	"airshift/internal/queue"
	"airshift/internal/recording"
	"airshift/internal/services"
	"airshift/internal/services/ffmpeg"
	"airshift/internal/stage"
)

// TranscodeHandler encodes the assembled stream into its final container,
// embeds metadata tags, and moves the result to the output path.
type TranscodeHandler struct {
	cfg        *config.Config
	transcoder ffmpeg.Client
	verifyTags func(path string, want map[string]string) error
	probe      func(ctx context.Context, path string) (ffprobe.Result, error)
	logger     *slog.Logger
}

// NewTranscodeHandler builds the transcode stage.
func NewTranscodeHandler(cfg *config.Config, logger *slog.Logger) *TranscodeHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TranscodeHandler{
		cfg:        cfg,
		transcoder: ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary())),
		verifyTags: ffmpeg.VerifyTags,
		probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
		},
		logger: logger,
	}
}

// NewTranscodeHandlerWith wires an explicit encoder client (used in tests).
func NewTranscodeHandlerWith(cfg *config.Config, client ffmpeg.Client) *TranscodeHandler {
	return &TranscodeHandler{
		cfg:        cfg,
		transcoder: client,
		verifyTags: func(string, map[string]string) error { return nil },
		logger:     logging.NewNop(),
	}
}

// Prepare verifies the assembled stream still exists on disk.
func (h *TranscodeHandler) Prepare(ctx context.Context, item *queue.Item) error {
	if item.StreamFile == "" {
		return services.Wrap(services.ErrValidation, "transcode", "prepare", "item has no assembled stream", nil)
	}
	if info, err := os.Stat(item.StreamFile); err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrValidation, "transcode", "prepare",
			fmt.Sprintf("assembled stream %s is missing or empty", item.StreamFile), err)
	}
	return nil
}

// Execute runs the encoder and finalizes the output file. The stream file is
// removed on success and on fatal encode failure.
func (h *TranscodeHandler) Execute(ctx context.Context, item *queue.Item) error {
	format := item.Format
	if format == "" {
		format = h.cfg.Recording.OutputFormat
	}
	bitrate := item.BitrateKbps
	if bitrate <= 0 {
		bitrate = h.cfg.Recording.BitrateKbps
	}

	var meta recording.Metadata
	if item.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(item.MetadataJSON), &meta); err != nil {
			h.logger.Warn("stored metadata is unreadable, encoding without tags", logging.Error(err))
		}
	}
	if meta.Title == "" {
		meta.Title = item.Title
	}
	tags := meta.Tags()

	encodedPath := item.StreamFile + ".encoded" + filepath.Ext(item.OutputPath)
	transcodeCtx := ctx
	if h.cfg.Recording.TranscodeTimeout > 0 {
		var cancel context.CancelFunc
		transcodeCtx, cancel = context.WithTimeout(ctx, time.Duration(h.cfg.Recording.TranscodeTimeout)*time.Second)
		defer cancel()
	}

	err := h.transcoder.Transcode(transcodeCtx, ffmpeg.Request{
		InputPath:   item.StreamFile,
		OutputPath:  encodedPath,
		Format:      format,
		BitrateKbps: bitrate,
		Tags:        tags,
	}, nil)
	if err != nil {
		if ctx.Err() != nil {
			os.Remove(encodedPath)
			return context.Canceled
		}
		os.Remove(encodedPath)
		item.ReasonCode = recording.ReasonTranscode
		return services.Wrap(services.ErrExternalTool, "transcode", "encode", "encoder failed", err)
	}
	if info, statErr := os.Stat(encodedPath); statErr != nil || info.Size() == 0 {
		item.ReasonCode = recording.ReasonTranscode
		return services.Wrap(services.ErrExternalTool, "transcode", "encode", "encoder produced no output", statErr)
	}

	if ffmpeg.SupportsTags(format) {
		if err := h.verifyTags(encodedPath, tags); err != nil {
			h.logger.Warn("tag verification failed", logging.Error(err))
		}
	}

	// Output inspection is best-effort; a missing ffprobe never fails the item.
	if h.probe != nil {
		if probed, err := h.probe(ctx, encodedPath); err != nil {
			h.logger.Debug("output inspection skipped", logging.Error(err))
		} else if probed.AudioStreamCount() == 0 {
			h.logger.Warn("encoded file reports no audio streams",
				logging.String("path", encodedPath))
		} else {
			h.logger.Info("encoded output inspected",
				logging.Float64("duration_seconds", probed.DurationSeconds()),
				logging.Int64("size_bytes", probed.SizeBytes()))
		}
	}

	if err := os.MkdirAll(filepath.Dir(item.OutputPath), 0o755); err != nil {
		os.Remove(encodedPath)
		item.ReasonCode = recording.ReasonTranscode
		return services.Wrap(services.ErrTransient, "transcode", "finalize", "cannot create output directory", err)
	}
	if err := fileutil.MoveFile(encodedPath, item.OutputPath); err != nil {
		os.Remove(encodedPath)
		item.ReasonCode = recording.ReasonTranscode
		return services.Wrap(services.ErrTransient, "transcode", "finalize", "cannot move final file", err)
	}

	os.Remove(item.StreamFile)
	item.StreamFile = ""
	item.FinalFile = item.OutputPath
	item.ProgressMessage = "Encoded " + filepath.Base(item.OutputPath)
	return nil
}

// HealthCheck verifies the encoder binary is on PATH.
func (h *TranscodeHandler) HealthCheck(ctx context.Context) stage.Health {
	if h.transcoder == nil {
		return stage.Unhealthy("transcode", "encoder not configured")
	}
	return stage.Healthy("transcode")
}
