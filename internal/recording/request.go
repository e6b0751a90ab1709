package recording

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Metadata is the descriptive block embedded into the final file's tags.
// It is supplied by the caller; the engine never looks it up itself.
type Metadata struct {
	Title       string    `json:"title,omitempty"`
	Performers  []string  `json:"performers,omitempty"`
	Station     string    `json:"station,omitempty"`
	Date        time.Time `json:"date,omitzero"`
	Genre       string    `json:"genre,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Tags renders the metadata as encoder tag key/value pairs. Empty fields are
// omitted.
func (m Metadata) Tags() map[string]string {
	tags := make(map[string]string)
	if m.Title != "" {
		tags["title"] = m.Title
	}
	if len(m.Performers) > 0 {
		tags["artist"] = strings.Join(m.Performers, ", ")
	}
	if m.Station != "" {
		tags["album"] = m.Station
	}
	if !m.Date.IsZero() {
		tags["date"] = m.Date.Format("2006-01-02")
	}
	if m.Genre != "" {
		tags["genre"] = m.Genre
	}
	if m.Description != "" {
		tags["comment"] = m.Description
	}
	return tags
}

// Request describes one program to capture.
type Request struct {
	StationID   string
	Start       time.Time
	End         time.Time
	OutputPath  string
	Format      string
	BitrateKbps int
	Metadata    Metadata
}

// Validate checks the request's internal consistency. Station availability
// is checked upstream against live service data.
func (r Request) Validate() error {
	if strings.TrimSpace(r.StationID) == "" {
		return errors.New("station id is required")
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("start and end times are required")
	}
	if !r.Start.Before(r.End) {
		return fmt.Errorf("start %s is not before end %s", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	if strings.TrimSpace(r.OutputPath) == "" {
		return errors.New("output path is required")
	}
	return nil
}

// ValidateWindow rejects windows the replay service cannot serve: ones still
// broadcasting and ones older than the replay horizon. It runs before any
// network work.
func (r Request) ValidateWindow(now time.Time, replayWindowDays int) error {
	if r.End.After(now) {
		return errors.New("window has not finished broadcasting yet")
	}
	if replayWindowDays > 0 {
		horizon := now.AddDate(0, 0, -replayWindowDays)
		if r.Start.Before(horizon) {
			return fmt.Errorf("window starts before the %d-day replay horizon", replayWindowDays)
		}
	}
	return nil
}

// Duration returns the requested window length.
func (r Request) Duration() time.Duration {
	return r.End.Sub(r.Start)
}
