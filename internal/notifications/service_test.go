package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"airshift/internal/config"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		captured = append(captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
	}))
	t.Cleanup(server.Close)
	return server, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), captured...)
	}
}

func serviceFor(endpoint string) Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = endpoint
	return NewService(&cfg)
}

func TestNewServiceWithoutTopicIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := NewService(&cfg)
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyRecordingFailed(context.Background(), "show", "reason"); err != nil {
		t.Fatalf("noop notify: %v", err)
	}
}

func TestNotifyRecordingCompleted(t *testing.T) {
	server, requests := newCaptureServer(t)
	svc := serviceFor(server.URL)

	err := svc.NotifyRecordingCompleted(context.Background(), "Evening Show", "/music/evening.mp3", 95*time.Second)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	got := requests()
	if len(got) != 1 {
		t.Fatalf("requests = %d, want 1", len(got))
	}
	if got[0].title != "Airshift - Recording Complete" {
		t.Fatalf("title = %q", got[0].title)
	}
	if got[0].tags != "airshift,recording,completed" {
		t.Fatalf("tags = %q", got[0].tags)
	}
	if !strings.Contains(got[0].body, "Evening Show") || !strings.Contains(got[0].body, "/music/evening.mp3") {
		t.Fatalf("body = %q", got[0].body)
	}
}

func TestNotifyRecordingFailedUsesHighPriority(t *testing.T) {
	server, requests := newCaptureServer(t)
	svc := serviceFor(server.URL)

	if err := svc.NotifyRecordingFailed(context.Background(), "Evening Show", "segment_shortfall"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	got := requests()
	if len(got) != 1 {
		t.Fatalf("requests = %d, want 1", len(got))
	}
	if got[0].priority != "high" {
		t.Fatalf("priority = %q, want high", got[0].priority)
	}
	if !strings.Contains(got[0].body, "segment_shortfall") {
		t.Fatalf("body = %q", got[0].body)
	}
}

func TestNotifyQueueCompletedMessages(t *testing.T) {
	server, requests := newCaptureServer(t)
	svc := serviceFor(server.URL)

	if err := svc.NotifyQueueCompleted(context.Background(), 3, 0, 42*time.Second); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := svc.NotifyQueueCompleted(context.Background(), 2, 1, 42*time.Second); err != nil {
		t.Fatalf("notify: %v", err)
	}

	got := requests()
	if len(got) != 2 {
		t.Fatalf("requests = %d, want 2", len(got))
	}
	if strings.Contains(got[0].title, "errors") {
		t.Fatalf("clean run title = %q", got[0].title)
	}
	if !strings.Contains(got[1].title, "errors") {
		t.Fatalf("failed run title = %q", got[1].title)
	}
	if !strings.Contains(got[1].body, "2 succeeded, 1 failed") {
		t.Fatalf("failed run body = %q", got[1].body)
	}
}

func TestNotifyErrorFormatsContext(t *testing.T) {
	server, requests := newCaptureServer(t)
	svc := serviceFor(server.URL)

	if err := svc.NotifyError(context.Background(), errors.New("disk full"), "queue processing"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	got := requests()
	if len(got) != 1 {
		t.Fatalf("requests = %d, want 1", len(got))
	}
	if got[0].body != "Error with queue processing: disk full" {
		t.Fatalf("body = %q", got[0].body)
	}
}

func TestSendReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()
	svc := serviceFor(server.URL)

	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("error = %v", err)
	}
}
