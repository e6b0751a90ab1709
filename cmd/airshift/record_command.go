package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"airshift/internal/fileutil"
	"airshift/internal/logging"
	"airshift/internal/notifications"
	"airshift/internal/recording"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"20060102150405",
	"200601021504",
}

func parseLocalTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (expected e.g. \"2006-01-02 15:04\")", raw)
}

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var (
		station     string
		startFlag   string
		endFlag     string
		duration    time.Duration
		output      string
		format      string
		bitrate     int
		title       string
		performers  []string
		genre       string
		description string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one program immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			start, err := parseLocalTime(startFlag)
			if err != nil {
				return err
			}
			var end time.Time
			switch {
			case endFlag != "" && duration > 0:
				return errors.New("--end and --duration are mutually exclusive")
			case endFlag != "":
				if end, err = parseLocalTime(endFlag); err != nil {
					return err
				}
			case duration > 0:
				end = start.Add(duration)
			default:
				return errors.New("either --end or --duration is required")
			}

			if format == "" {
				format = cfg.Recording.OutputFormat
			}
			if bitrate <= 0 {
				bitrate = cfg.Recording.BitrateKbps
			}
			if output == "" {
				name := fileutil.RecordingFileName(station, title, start.Format("20060102-1504"), format)
				output = filepath.Join(cfg.Paths.OutputDir, name)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			notifier := notifications.NewService(cfg)
			if err := notifier.NotifyRecordingStarted(sigCtx, station, title); err != nil {
				logger.Debug("start notification failed", logging.Error(err))
			}

			interactive := isatty.IsTerminal(os.Stdout.Fd())
			var progressOpt recording.OrchestratorOption
			if interactive {
				progressOpt = recording.WithProgress(func(done, total int) {
					fmt.Fprintf(cmd.OutOrStdout(), "\rfetching segments %d/%d", done, total)
					if done == total {
						fmt.Fprintln(cmd.OutOrStdout())
					}
				})
			} else {
				progressOpt = recording.WithProgress(nil)
			}

			orchestrator := recording.NewOrchestrator(cfg, logger, progressOpt)
			result := orchestrator.Record(sigCtx, recording.Request{
				StationID:   station,
				Start:       start,
				End:         end,
				OutputPath:  output,
				Format:      format,
				BitrateKbps: bitrate,
				Metadata: recording.Metadata{
					Title:       title,
					Performers:  performers,
					Station:     station,
					Date:        start,
					Genre:       genre,
					Description: description,
				},
			})

			if !result.Success {
				if err := notifier.NotifyRecordingFailed(cmd.Context(), title, result.ReasonCode); err != nil {
					logger.Debug("failure notification failed", logging.Error(err))
				}
				detail := strings.Join(result.ErrorMessages, "; ")
				if detail == "" {
					detail = "no further detail"
				}
				return fmt.Errorf("recording failed (%s): %s", result.ReasonCode, detail)
			}

			if err := notifier.NotifyRecordingCompleted(cmd.Context(), title, result.OutputPath, result.Elapsed); err != nil {
				logger.Debug("completion notification failed", logging.Error(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d/%d segments (%d bytes) in %s\n%s\n",
				result.DownloadedSegments, result.TotalSegments, result.TotalBytes,
				result.Elapsed.Round(time.Second), result.OutputPath)
			for _, warning := range result.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", warning)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&station, "station", "", "Station identifier (e.g. TBS)")
	cmd.Flags().StringVar(&startFlag, "start", "", "Program start time")
	cmd.Flags().StringVar(&endFlag, "end", "", "Program end time")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Program length (alternative to --end)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (defaults under output_dir)")
	cmd.Flags().StringVar(&format, "format", "", "Output format (mp3, aac, m4a, flac, opus)")
	cmd.Flags().IntVar(&bitrate, "bitrate", 0, "Output bitrate in kbit/s")
	cmd.Flags().StringVar(&title, "title", "", "Program title for tagging")
	cmd.Flags().StringSliceVar(&performers, "performer", nil, "Performer name (repeatable)")
	cmd.Flags().StringVar(&genre, "genre", "Radio", "Genre tag")
	cmd.Flags().StringVar(&description, "description", "", "Free-text description tag")
	_ = cmd.MarkFlagRequired("station")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}
