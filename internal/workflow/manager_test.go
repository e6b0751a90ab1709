package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"airshift/internal/config"
	"airshift/internal/logging"
	"airshift/internal/queue"
	"airshift/internal/services"
	"airshift/internal/stage"
)

type stubHandler struct {
	mu       sync.Mutex
	prepares int
	executes int
	execErr  error
	onExec   func(*queue.Item) error
}

func (h *stubHandler) Prepare(ctx context.Context, item *queue.Item) error {
	h.mu.Lock()
	h.prepares++
	h.mu.Unlock()
	return nil
}

func (h *stubHandler) Execute(ctx context.Context, item *queue.Item) error {
	h.mu.Lock()
	h.executes++
	h.mu.Unlock()
	if h.onExec != nil {
		return h.onExec(item)
	}
	return h.execErr
}

func (h *stubHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("stub")
}

func (h *stubHandler) executeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.executes
}

func newTestStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testManagerConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.StagingDir = t.TempDir()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	return &cfg
}

func enqueueTestRecording(t *testing.T, store *queue.Store) *queue.Item {
	t.Helper()
	start := time.Date(2026, 8, 20, 21, 0, 0, 0, time.Local)
	item, err := store.NewRecording(context.Background(), "TBS", "Evening Show",
		start, start.Add(30*time.Minute), "/tmp/out.mp3", "mp3", 192, "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return item
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get item: %v", err)
		}
		if item.Status == want {
			return item
		}
		if item.Status == queue.StatusFailed && want != queue.StatusFailed {
			t.Fatalf("item failed while waiting for %s: %s", want, item.ErrorMessage)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("item %d never reached status %s", id, want)
	return nil
}

func TestManagerProcessesItemThroughAllStages(t *testing.T) {
	store := newTestStore(t)
	cfg := testManagerConfig(t)

	resolver := &stubHandler{onExec: func(item *queue.Item) error {
		item.PlaylistJSON = `[{"index":0,"url":"http://example/0.aac","nominal_duration":5000000000}]`
		item.TotalSegments = 1
		return nil
	}}
	capturer := &stubHandler{onExec: func(item *queue.Item) error {
		item.StreamFile = "/tmp/stream.bin"
		item.DownloadedSegments = 1
		return nil
	}}
	transcoder := &stubHandler{onExec: func(item *queue.Item) error {
		item.FinalFile = item.OutputPath
		return nil
	}}

	manager := NewManager(cfg, store, logging.NewNop(), nil, StageSet{
		Resolver:   resolver,
		Capturer:   capturer,
		Transcoder: transcoder,
	})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()

	queued := enqueueTestRecording(t, store)
	item := waitForStatus(t, store, queued.ID, queue.StatusCompleted)

	if resolver.executeCount() != 1 || capturer.executeCount() != 1 || transcoder.executeCount() != 1 {
		t.Fatalf("stage executions = %d/%d/%d, want 1 each",
			resolver.executeCount(), capturer.executeCount(), transcoder.executeCount())
	}
	if item.ProgressPercent != 100 {
		t.Fatalf("progress = %.0f, want 100", item.ProgressPercent)
	}
	if item.FinalFile != item.OutputPath {
		t.Fatalf("final file = %q", item.FinalFile)
	}
}

func TestManagerMarksFailedItem(t *testing.T) {
	store := newTestStore(t)
	cfg := testManagerConfig(t)

	resolver := &stubHandler{execErr: fmt.Errorf("playlist unavailable: %w", services.ErrTransient)}
	manager := NewManager(cfg, store, logging.NewNop(), nil, StageSet{
		Resolver:   resolver,
		Capturer:   &stubHandler{},
		Transcoder: &stubHandler{},
	})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()

	queued := enqueueTestRecording(t, store)
	item := waitForStatus(t, store, queued.ID, queue.StatusFailed)
	if item.ErrorMessage == "" {
		t.Fatal("failed item must carry an error message")
	}
	if manager.LastError() == nil {
		t.Fatal("manager must surface the stage failure")
	}
}

func TestManagerRoutesValidationErrorsToReview(t *testing.T) {
	store := newTestStore(t)
	cfg := testManagerConfig(t)

	resolver := &stubHandler{execErr: fmt.Errorf("window is in the future: %w", services.ErrValidation)}
	manager := NewManager(cfg, store, logging.NewNop(), nil, StageSet{
		Resolver:   resolver,
		Capturer:   &stubHandler{},
		Transcoder: &stubHandler{},
	})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()

	queued := enqueueTestRecording(t, store)
	item := waitForStatus(t, store, queued.ID, queue.StatusReview)
	if !item.NeedsReview || item.ReviewReason == "" {
		t.Fatalf("review item = %+v", item)
	}
}

func TestManagerRollsBackInterruptedStage(t *testing.T) {
	store := newTestStore(t)
	cfg := testManagerConfig(t)

	started := make(chan struct{}, 1)
	interrupted := make(chan struct{})
	resolver := &stubHandler{onExec: func(item *queue.Item) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-interrupted
		return context.Canceled
	}}
	manager := NewManager(cfg, store, logging.NewNop(), nil, StageSet{
		Resolver:   resolver,
		Capturer:   &stubHandler{},
		Transcoder: &stubHandler{},
	})
	ctx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	queued := enqueueTestRecording(t, store)
	<-started
	cancel()
	close(interrupted)
	manager.Stop()

	item, err := store.GetByID(context.Background(), queued.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("interrupted item status = %s, want %s", item.Status, queue.StatusPending)
	}
}

func TestManagerStartTwice(t *testing.T) {
	store := newTestStore(t)
	cfg := testManagerConfig(t)
	manager := NewManager(cfg, store, logging.NewNop(), nil, StageSet{
		Resolver:   &stubHandler{},
		Capturer:   &stubHandler{},
		Transcoder: &stubHandler{},
	})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("second start must fail")
	}
	if !manager.Running() {
		t.Fatal("manager should report running")
	}
}
