package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusResolving   Status = "resolving"
	StatusResolved    Status = "resolved"
	StatusFetching    Status = "fetching"
	StatusAssembled   Status = "assembled"
	StatusTranscoding Status = "transcoding"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusReview      Status = "review"
)

// UserStopReason is the review reason set when a user explicitly stops an item.
const UserStopReason = "Stop requested by user"

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusResolving,
	StatusResolved,
	StatusFetching,
	StatusAssembled,
	StatusTranscoding,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusResolving:   {},
	StatusFetching:    {},
	StatusTranscoding: {},
}

type statusTransition struct {
	from Status
	to   Status
}

var stageRollbackTransitions = []statusTransition{
	{from: StatusResolving, to: StatusPending},
	{from: StatusFetching, to: StatusResolved},
	{from: StatusTranscoding, to: StatusAssembled},
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
	Review     int
}

// Item represents a recording job persisted in SQLite.
type Item struct {
	ID                 int64
	StationID          string
	Title              string
	StartTime          time.Time
	EndTime            time.Time
	Status             Status
	OutputPath         string
	Format             string
	BitrateKbps        int
	PlaylistJSON       string
	StreamFile         string
	FinalFile          string
	TotalSegments      int
	DownloadedSegments int
	FailedSegments     int
	TotalBytes         int64
	ReasonCode         string
	ErrorMessage       string
	MetadataJSON       string
	ProgressStage      string
	ProgressPercent    float64
	ProgressMessage    string
	NeedsReview        bool
	ReviewReason       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := statusSet[status]
	return status, ok
}

// IsProcessing reports whether the status represents in-flight stage work.
func (s Status) IsProcessing() bool {
	_, ok := processingStatuses[s]
	return ok
}

// IsTerminal reports whether the status ends the item lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusReview:
		return true
	default:
		return false
	}
}

// Label renders a human-friendly status label for table output.
func (s Status) Label() string {
	text := strings.ReplaceAll(string(s), "_", " ")
	if text == "" {
		return text
	}
	return strings.ToUpper(text[:1]) + text[1:]
}
