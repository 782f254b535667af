package types

import (
	"path/filepath"
	"strings"
	"time"
)

// Job status constants
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// BlockedMarker is the phrase that identifies a segment rejected by the
// remote content filter rather than failed for another reason
const BlockedMarker = "safety filters"

// AudioFile describes an inspected input recording
type AudioFile struct {
	Path            string
	DurationMs      int64
	DurationMinutes float64
	VolumeDBFS      float64
}

// Filename returns the base name of the recording
func (a AudioFile) Filename() string {
	return filepath.Base(a.Path)
}

// Duration returns the recording length as a time.Duration
func (a AudioFile) Duration() time.Duration {
	return time.Duration(a.DurationMs) * time.Millisecond
}

// AudioSegment is one extracted, time-bounded slice of the input
type AudioSegment struct {
	Path            string
	Number          int
	DurationMs      int64
	DurationMinutes float64
}

// Filename returns the base name of the segment file
func (s AudioSegment) Filename() string {
	return filepath.Base(s.Path)
}

// SegmentTranscript is the per-segment transcription result. A failed
// segment carries Error and an empty Text
type SegmentTranscript struct {
	Number  int    `json:"number"`
	Text    string `json:"text"`
	IsError bool   `json:"is_error"`
	Error   string `json:"error,omitempty"`
}

// IsBlocked reports whether the segment was rejected by a content filter
func (t SegmentTranscript) IsBlocked() bool {
	return t.IsError && strings.Contains(strings.ToLower(t.Error), BlockedMarker)
}

// TranscriptionOutcome is the final result of one completed pipeline run
type TranscriptionOutcome struct {
	Transcript         string `json:"-"`
	OutputPath         string `json:"output_path"`
	TotalSegments      int    `json:"total_segments"`
	SuccessfulSegments int    `json:"successful_segments"`
	FailedSegments     int    `json:"failed_segments"`
	BlockedSegments    []int  `json:"blocked_segments"`
}

// SuccessRate returns the share of successful segments as a percentage
func (o TranscriptionOutcome) SuccessRate() float64 {
	if o.TotalSegments == 0 {
		return 0
	}
	return float64(o.SuccessfulSegments) / float64(o.TotalSegments) * 100
}

// ProgressFunc receives a percentage in [0,100] and a human readable message
type ProgressFunc func(percent int, message string)

// Emit calls fn when it is set
func (fn ProgressFunc) Emit(percent int, message string) {
	if fn != nil {
		fn(percent, message)
	}
}
