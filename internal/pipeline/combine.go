package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// EmptyTranscriptPlaceholder replaces a blank final transcript
const EmptyTranscriptPlaceholder = "[No speech was transcribed from this recording]"

const (
	segmentSeparator = "\n\n"
	footerRule       = "============================================================"
)

// Combine joins segment texts in order. Error segments are rendered inline
// as markers, and a summary footer lists blocked and failed segments
func Combine(transcripts []types.SegmentTranscript) string {
	parts := make([]string, 0, len(transcripts))
	var blocked, failed []int
	for _, t := range transcripts {
		if !t.IsError {
			parts = append(parts, strings.TrimSpace(t.Text))
			continue
		}
		msg := t.Error
		if msg == "" {
			msg = "Unknown error"
		}
		parts = append(parts, fmt.Sprintf("[ERROR: Segment %d - %s]", t.Number, msg))
		if t.IsBlocked() {
			blocked = append(blocked, t.Number)
		} else {
			failed = append(failed, t.Number)
		}
	}

	text := strings.Join(parts, segmentSeparator)
	if len(blocked) == 0 && len(failed) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(footerRule + "\nTRANSCRIPTION SUMMARY\n" + footerRule + "\n")
	if len(blocked) > 0 {
		fmt.Fprintf(&b, "%d segment(s) blocked by safety filters: %s\n", len(blocked), joinInts(blocked))
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "%d segment(s) failed to transcribe: %s\n", len(failed), joinInts(failed))
	}
	b.WriteString(footerRule + "\n")
	return b.String()
}

// Summarize counts the outcome of a run. Blocked segments are a subset of
// the failed ones
func Summarize(transcripts []types.SegmentTranscript) types.TranscriptionOutcome {
	out := types.TranscriptionOutcome{TotalSegments: len(transcripts), BlockedSegments: []int{}}
	for _, t := range transcripts {
		if !t.IsError {
			out.SuccessfulSegments++
			continue
		}
		out.FailedSegments++
		if t.IsBlocked() {
			out.BlockedSegments = append(out.BlockedSegments, t.Number)
		}
	}
	return out
}

func joinInts(ns []int) string {
	s := make([]string, len(ns))
	for i, n := range ns {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, ", ")
}
