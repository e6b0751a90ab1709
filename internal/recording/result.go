package recording

import "time"

// State tracks an operation's progress through the pipeline. Transitions are
// strictly forward; a fatal error at any state jumps straight to done.
type State string

const (
	StateIdle        State = "idle"
	StateResolving   State = "resolving_playlist"
	StateFetching    State = "fetching_segments"
	StateAssembling  State = "assembling"
	StateTranscoding State = "transcoding"
	StateDone        State = "done"
)

// Stable reason codes for programmatic handling of failed results. Each fatal
// failure category maps to exactly one code.
const (
	ReasonInvalidRequest   = "invalid_request"
	ReasonAuth             = "auth_failed"
	ReasonPlaylistFetch    = "playlist_fetch_failed"
	ReasonPlaylistParse    = "playlist_parse_failed"
	ReasonSegmentShortfall = "segment_shortfall"
	ReasonAssembly         = "assembly_failed"
	ReasonTranscode        = "transcode_failed"
	ReasonCancelled        = "cancelled"
)

// Result is the only object a recording operation returns. Expected failures
// of every kind land here rather than surfacing as errors.
type Result struct {
	Success            bool
	State              State
	TotalSegments      int
	DownloadedSegments int
	FailedSegments     int
	TotalBytes         int64
	Elapsed            time.Duration
	OutputPath         string
	ReasonCode         string
	ErrorMessages      []string
	Warnings           []string
}

// SuccessRatio returns downloaded/total, or 0 for an empty operation.
func (r Result) SuccessRatio() float64 {
	if r.TotalSegments == 0 {
		return 0
	}
	return float64(r.DownloadedSegments) / float64(r.TotalSegments)
}
