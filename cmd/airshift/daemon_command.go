package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"airshift/internal/config"
	"airshift/internal/daemon"
	"airshift/internal/logging"
	"airshift/internal/notifications"
	"airshift/internal/queue"
	"airshift/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the queue-processing daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return err
				}

				sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				notifier := notifications.NewService(cfg)
				manager := workflow.NewManager(cfg, store, logger, notifier, workflow.StageSet{
					Resolver:   workflow.NewResolveHandler(cfg),
					Capturer:   workflow.NewCaptureHandler(cfg),
					Transcoder: workflow.NewTranscodeHandler(cfg, logger),
				})

				d, err := daemon.New(cfg, store, logger, manager)
				if err != nil {
					return err
				}
				if err := d.Start(sigCtx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "airshift daemon running; press Ctrl-C to stop")
				d.Wait(sigCtx)
				return nil
			})
		},
	}
}
