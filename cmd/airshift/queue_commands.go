package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"airshift/internal/config"
	"airshift/internal/fileutil"
	"airshift/internal/queue"
	"airshift/internal/recording"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the recording queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newQueueAddCommand(ctx))
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueRemoveCommand(ctx))
	cmd.AddCommand(newQueueRetryCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	cmd.AddCommand(newQueueHealthCommand(ctx))
	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
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
		Use:   "add",
		Short: "Enqueue a program for the daemon to record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
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

				meta := recording.Metadata{
					Title:       title,
					Performers:  performers,
					Station:     station,
					Date:        start,
					Genre:       genre,
					Description: description,
				}
				metaJSON, err := json.Marshal(meta)
				if err != nil {
					return fmt.Errorf("encode metadata: %w", err)
				}

				item, err := store.NewRecording(cmd.Context(), station, title, start, end, output, format, bitrate, string(metaJSON))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued item %d: %s %s - %s\n",
					item.ID, station, start.Format("2006-01-02 15:04"), end.Format("15:04"))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&station, "station", "", "Station identifier")
	cmd.Flags().StringVar(&startFlag, "start", "", "Program start time")
	cmd.Flags().StringVar(&endFlag, "end", "", "Program end time")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Program length (alternative to --end)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&format, "format", "", "Output format")
	cmd.Flags().IntVar(&bitrate, "bitrate", 0, "Output bitrate in kbit/s")
	cmd.Flags().StringVar(&title, "title", "", "Program title")
	cmd.Flags().StringSliceVar(&performers, "performer", nil, "Performer name (repeatable)")
	cmd.Flags().StringVar(&genre, "genre", "Radio", "Genre tag")
	cmd.Flags().StringVar(&description, "description", "", "Description tag")
	_ = cmd.MarkFlagRequired("station")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var statuses []queue.Status
				if strings.TrimSpace(statusFilter) != "" {
					status, ok := queue.ParseStatus(statusFilter)
					if !ok {
						return fmt.Errorf("unknown status %q", statusFilter)
					}
					statuses = append(statuses, status)
				}
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					progress := item.ProgressMessage
					if progress == "" && item.ErrorMessage != "" {
						progress = item.ErrorMessage
					}
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.StationID,
						item.Title,
						item.StartTime.Format("01-02 15:04"),
						item.EndTime.Format("15:04"),
						item.Status.Label(),
						progress,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Station", "Title", "Start", "End", "Status", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show items with this status")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove queue items by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				for _, id := range ids {
					removed, err := store.Remove(cmd.Context(), id)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(cmd.OutOrStdout(), "Item %d removed\n", id)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Item %d not found\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id]...",
		Short: "Return failed items to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				count, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d item(s) queued for retry\n", count)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completed, failed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var (
					count int64
					err   error
					label string
				)
				switch {
				case completed && failed:
					return errors.New("--completed and --failed are mutually exclusive")
				case completed:
					count, err = store.ClearCompleted(cmd.Context())
					label = "completed item(s)"
				case failed:
					count, err = store.ClearFailed(cmd.Context())
					label = "failed item(s)"
				default:
					count, err = store.Clear(cmd.Context())
					label = "item(s)"
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", count, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completed, "completed", false, "Only clear completed items")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only clear failed items")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show aggregate queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				summary, err := store.HealthSummary(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Total", strconv.Itoa(summary.Total)},
					{"Pending", strconv.Itoa(summary.Pending)},
					{"Processing", strconv.Itoa(summary.Processing)},
					{"Completed", strconv.Itoa(summary.Completed)},
					{"Failed", strconv.Itoa(summary.Failed)},
					{"Review", strconv.Itoa(summary.Review)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"State", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
