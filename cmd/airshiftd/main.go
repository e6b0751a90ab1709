// Command airshiftd runs the queue-processing daemon without the CLI surface,
// suitable for a service manager unit.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"airshift/internal/config"
	"airshift/internal/daemon"
	"airshift/internal/logging"
	"airshift/internal/notifications"
	"airshift/internal/queue"
	"airshift/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		log.Fatalf("open queue store: %v", err)
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManager(cfg, store, logger, notifier, workflow.StageSet{
		Resolver:   workflow.NewResolveHandler(cfg),
		Capturer:   workflow.NewCaptureHandler(cfg),
		Transcoder: workflow.NewTranscodeHandler(cfg, logger),
	})

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	d.Stop()
	logger.Info("airshiftd shutting down")
}
