package recording

import (
	"testing"
	"time"
)

func validRequest() Request {
	start := time.Date(2026, 8, 20, 21, 0, 0, 0, time.Local)
	return Request{
		StationID:  "TBS",
		Start:      start,
		End:        start.Add(time.Hour),
		OutputPath: "/music/evening.mp3",
	}
}

func TestRequestValidate(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing station", func(r *Request) { r.StationID = " " }},
		{"missing start", func(r *Request) { r.Start = time.Time{} }},
		{"missing end", func(r *Request) { r.End = time.Time{} }},
		{"inverted window", func(r *Request) { r.Start, r.End = r.End, r.Start }},
		{"zero-length window", func(r *Request) { r.End = r.Start }},
		{"missing output path", func(r *Request) { r.OutputPath = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			request := validRequest()
			tc.mutate(&request)
			if err := request.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRequestValidateWindow(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	window := func(start time.Time) Request {
		request := validRequest()
		request.Start = start
		request.End = start.Add(time.Hour)
		return request
	}

	cases := []struct {
		name    string
		request Request
		days    int
		wantErr bool
	}{
		{"recent finished window", window(now.Add(-3 * time.Hour)), 7, false},
		{"still broadcasting", window(now.Add(-30 * time.Minute)), 7, true},
		{"future window", window(now.Add(time.Hour)), 7, true},
		{"beyond the replay horizon", window(now.AddDate(0, 0, -10)), 7, true},
		{"horizon disabled", window(now.AddDate(0, 0, -30)), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.request.ValidateWindow(now, tc.days)
			if tc.wantErr && err == nil {
				t.Fatal("expected window rejection")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("window rejected: %v", err)
			}
		})
	}
}

func TestRequestDuration(t *testing.T) {
	request := validRequest()
	if request.Duration() != time.Hour {
		t.Fatalf("duration = %s, want 1h", request.Duration())
	}
}

func TestMetadataTags(t *testing.T) {
	meta := Metadata{
		Title:       "Evening Show",
		Performers:  []string{"Tanaka", "Suzuki"},
		Station:     "TBS Radio",
		Date:        time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Genre:       "Talk",
		Description: "Season finale",
	}
	tags := meta.Tags()
	want := map[string]string{
		"title":   "Evening Show",
		"artist":  "Tanaka, Suzuki",
		"album":   "TBS Radio",
		"date":    "2026-08-20",
		"genre":   "Talk",
		"comment": "Season finale",
	}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v", tags)
	}
	for key, value := range want {
		if tags[key] != value {
			t.Fatalf("tag %s = %q, want %q", key, tags[key], value)
		}
	}
}

func TestMetadataTagsOmitsEmptyFields(t *testing.T) {
	tags := Metadata{Title: "Only Title"}.Tags()
	if len(tags) != 1 || tags["title"] != "Only Title" {
		t.Fatalf("tags = %v", tags)
	}
}

func TestResultSuccessRatio(t *testing.T) {
	result := Result{TotalSegments: 20, DownloadedSegments: 15}
	if got := result.SuccessRatio(); got != 0.75 {
		t.Fatalf("ratio = %v, want 0.75", got)
	}
	empty := Result{}
	if got := empty.SuccessRatio(); got != 0 {
		t.Fatalf("empty ratio = %v, want 0", got)
	}
}
