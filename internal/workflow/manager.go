package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"airshift/internal/config"
	"airshift/internal/logging"
	"airshift/internal/notifications"
	"airshift/internal/queue"
	"airshift/internal/services"
	"airshift/internal/stage"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration

	stages        []pipelineStage
	stageByStart  map[queue.Status]pipelineStage
	startStatuses []queue.Status

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error

	queueActive bool
	queueStart  time.Time
	processed   int
	failed      int
}

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Resolver   stage.Handler
	Capturer   stage.Handler
	Transcoder stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// NewManager constructs a workflow manager over the given handlers.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, set StageSet) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		stages: []pipelineStage{
			{
				name:             "resolve",
				handler:          set.Resolver,
				startStatus:      queue.StatusPending,
				processingStatus: queue.StatusResolving,
				doneStatus:       queue.StatusResolved,
			},
			{
				name:             "capture",
				handler:          set.Capturer,
				startStatus:      queue.StatusResolved,
				processingStatus: queue.StatusFetching,
				doneStatus:       queue.StatusAssembled,
			},
			{
				name:             "transcode",
				handler:          set.Transcoder,
				startStatus:      queue.StatusAssembled,
				processingStatus: queue.StatusTranscoding,
				doneStatus:       queue.StatusCompleted,
			},
		},
	}
	if m.pollInterval <= 0 {
		m.pollInterval = 5 * time.Second
	}
	m.stageByStart = make(map[queue.Status]pipelineStage, len(m.stages))
	for _, stg := range m.stages {
		m.stageByStart[stg.startStatus] = stg
		m.startStatuses = append(m.startStatuses, stg.startStatus)
	}
	return m
}

// Start launches the processing loop. It returns immediately; work happens on
// a background goroutine until Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow manager already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.mu.Unlock()

	if reset, err := m.store.ResetStuckProcessing(runCtx); err != nil {
		m.logger.Warn("failed to reset stuck items", logging.Error(err))
	} else if reset > 0 {
		m.logger.Info("reset stuck processing items", logging.Int64("count", reset))
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(runCtx)
	}()
	return nil
}

// Stop halts processing and waits for the in-flight item to settle.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.running = false
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Running reports whether the processing loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent stage failure, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		item, err := m.store.NextForStatuses(ctx, m.startStatuses...)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Error("queue poll failed", logging.Error(err))
			m.setLastError(err)
			if !m.sleepFor(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second) {
				return
			}
			continue
		}
		if item == nil {
			m.finishQueueRun(ctx)
			if !m.sleep(ctx) {
				return
			}
			continue
		}
		m.markQueueActive()
		if err := m.processItem(ctx, item); err != nil && ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) processItem(ctx context.Context, item *queue.Item) error {
	stg, ok := m.stageByStart[item.Status]
	if !ok {
		m.logger.Warn("no stage configured for status", logging.String("status", string(item.Status)))
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(ctx, requestID)
	stageCtx = services.WithItemID(stageCtx, item.ID)
	stageCtx = services.WithStage(stageCtx, stg.name)
	stageCtx = services.WithStation(stageCtx, item.StationID)
	stageLogger := logging.WithContext(stageCtx, m.logger)

	item.Status = stg.processingStatus
	item.ProgressStage = stg.name
	item.ProgressMessage = ""
	if err := m.store.Update(stageCtx, item); err != nil {
		stageLogger.Error("failed to transition item to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("title", strings.TrimSpace(item.Title)))

	handler := stg.handler
	if handler == nil {
		err := fmt.Errorf("stage %s missing handler", stg.name)
		m.failItem(stageCtx, stageLogger, item, err)
		return err
	}

	if err := handler.Prepare(stageCtx, item); err != nil {
		m.failItem(stageCtx, stageLogger, item, err)
		return err
	}
	if err := m.store.Update(stageCtx, item); err != nil {
		stageLogger.Error("failed to persist stage preparation", logging.Error(err))
		m.setLastError(err)
		return err
	}

	if err := handler.Execute(stageCtx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			m.rollbackInterrupted(item)
			return err
		}
		m.failItem(stageCtx, stageLogger, item, err)
		return err
	}

	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	if item.Status == queue.StatusCompleted {
		item.ProgressPercent = 100
		if strings.TrimSpace(item.ProgressMessage) == "" {
			item.ProgressMessage = "Completed"
		}
	}
	if err := m.store.Update(stageCtx, item); err != nil {
		stageLogger.Error("failed to persist stage result", logging.Error(err))
		m.setLastError(err)
		return err
	}

	stageLogger.Info("stage finished",
		logging.String(logging.FieldEventType, "stage_finish"),
		logging.String("status", string(item.Status)),
		logging.Duration("elapsed", time.Since(stageStart)))

	if item.Status == queue.StatusCompleted {
		m.mu.Lock()
		m.processed++
		m.mu.Unlock()
		if err := m.notifier.NotifyRecordingCompleted(stageCtx, item.Title, item.FinalFile, time.Since(stageStart)); err != nil {
			stageLogger.Debug("completion notification failed", logging.Error(err))
		}
	}
	return nil
}

func (m *Manager) failItem(ctx context.Context, stageLogger *slog.Logger, item *queue.Item, cause error) {
	item.Status = services.FailureStatus(cause)
	item.ErrorMessage = cause.Error()
	if item.Status == queue.StatusReview {
		item.NeedsReview = true
		item.ReviewReason = cause.Error()
	}
	if err := m.store.Update(ctx, item); err != nil {
		stageLogger.Error("failed to persist stage failure", logging.Error(err))
	}
	stageLogger.Error("stage failed", logging.Error(cause))
	m.setLastError(cause)
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
	if err := m.notifier.NotifyRecordingFailed(ctx, item.Title, cause.Error()); err != nil {
		stageLogger.Debug("failure notification failed", logging.Error(err))
	}
}

// rollbackInterrupted returns an interrupted item to its stage start status
// so a restart picks it up again. Persistence uses a fresh context because
// the run context is already cancelled.
func (m *Manager) rollbackInterrupted(item *queue.Item) {
	rollback := map[queue.Status]queue.Status{
		queue.StatusResolving:   queue.StatusPending,
		queue.StatusFetching:    queue.StatusResolved,
		queue.StatusTranscoding: queue.StatusAssembled,
	}
	target, ok := rollback[item.Status]
	if !ok {
		return
	}
	item.Status = target
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Update(persistCtx, item); err != nil {
		m.logger.Warn("failed to roll back interrupted item", logging.Error(err))
	}
}

func (m *Manager) markQueueActive() {
	m.mu.Lock()
	if !m.queueActive {
		m.queueActive = true
		m.queueStart = time.Now()
		m.processed = 0
		m.failed = 0
	}
	m.mu.Unlock()
}

func (m *Manager) finishQueueRun(ctx context.Context) {
	m.mu.Lock()
	active := m.queueActive
	processed := m.processed
	failed := m.failed
	start := m.queueStart
	m.queueActive = false
	m.mu.Unlock()
	if !active || processed+failed == 0 {
		return
	}
	if err := m.notifier.NotifyQueueCompleted(ctx, processed, failed, time.Since(start)); err != nil {
		m.logger.Debug("queue completion notification failed", logging.Error(err))
	}
}

func (m *Manager) sleep(ctx context.Context) bool {
	return m.sleepFor(ctx, m.pollInterval)
}

func (m *Manager) sleepFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = m.pollInterval
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
