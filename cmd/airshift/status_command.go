package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"airshift/internal/config"
	"airshift/internal/preflight"
	"airshift/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipNetwork bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check directories, tools, and service reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()

				var checks []preflight.Result
				if skipNetwork {
					checks = append(checks, preflight.CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
					if cfg.Paths.OutputDir != "" {
						checks = append(checks, preflight.CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
					}
				} else {
					checks = preflight.RunAll(cmd.Context(), cfg)
				}

				rows := make([][]string, 0, len(checks))
				for _, check := range checks {
					state := "FAIL"
					if check.Passed {
						state = "OK"
					}
					rows = append(rows, []string{check.Name, state, check.Detail})
				}

				for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
					state := "FAIL"
					detail := status.Detail
					if status.Available {
						state = "OK"
						if status.Version != "" {
							detail = status.Version
						}
					} else if status.Optional {
						state = "MISSING (optional)"
					}
					rows = append(rows, []string{status.Name, state, detail})
				}

				if summary, err := store.HealthSummary(cmd.Context()); err == nil {
					rows = append(rows, []string{"Queue", "OK", queueSummaryLine(summary)})
				} else {
					rows = append(rows, []string{"Queue", "FAIL", err.Error()})
				}

				fmt.Fprintln(out, renderTable(
					[]string{"Check", "State", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&skipNetwork, "offline", false, "Skip checks that reach the network")
	return cmd
}

func queueSummaryLine(summary queue.HealthSummary) string {
	return fmt.Sprintf("%d total, %d pending, %d processing, %d failed",
		summary.Total, summary.Pending, summary.Processing, summary.Failed)
}
