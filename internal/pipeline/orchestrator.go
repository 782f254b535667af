// Package pipeline runs one recording through inspection, segmentation,
// per-segment transcription, combination and save
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/audio"
	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// Progress allocation
const (
	progressStart       = 10
	progressLoading     = 11
	progressLoaded      = 12
	progressTranscribe  = 25
	progressTranscribed = 85
	progressSaving      = 90
	progressComplete    = 95
)

// Loading defaults
const (
	DefaultLoadPoll      = time.Second
	DefaultHeartbeat     = 10 * time.Second
	DefaultLoadTimeout   = 5 * time.Minute
	DefaultSegmentLength = 12 * time.Minute
)

// Inspector reads recording metadata
type Inspector interface {
	Inspect(ctx context.Context, path string) (types.AudioFile, error)
}

// Transcriber turns one segment into text. Remote failures are reported in
// the returned transcript, never as a Go error
type Transcriber interface {
	TranscribeSegment(ctx context.Context, seg types.AudioSegment, total int) types.SegmentTranscript
}

// TranscriptWriter chooses where the transcript goes and writes it. name is
// the display name of the recording
type TranscriptWriter interface {
	ResolveOutputPath(inputPath, name string) (string, error)
	WriteTranscript(path, text string) error
}

// Request is one pipeline run
type Request struct {
	InputPath string
	// Name is the display name of the recording; defaults to the input base name
	Name string
	// OutputPath is derived by the TranscriptWriter when empty
	OutputPath    string
	SegmentLength time.Duration
}

// Orchestrator drives the state machine of a single job
type Orchestrator struct {
	inspector   Inspector
	segmenter   audio.Segmenter
	transcriber Transcriber
	writer      TranscriptWriter

	loadPoll    time.Duration
	heartbeat   time.Duration
	loadTimeout time.Duration
	stat        func(string) (os.FileInfo, error)
	removeAll   func(string) error
	log         zerolog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLoadTiming overrides the loading poll interval, heartbeat interval and
// load timeout. Zero values keep the defaults
func WithLoadTiming(poll, heartbeat, timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if poll > 0 {
			o.loadPoll = poll
		}
		if heartbeat > 0 {
			o.heartbeat = heartbeat
		}
		if timeout > 0 {
			o.loadTimeout = timeout
		}
	}
}

// New creates an Orchestrator. A nil writer saves next to the input
func New(inspector Inspector, segmenter audio.Segmenter, transcriber Transcriber, writer TranscriptWriter, log zerolog.Logger, opts ...Option) *Orchestrator {
	if writer == nil {
		writer = siblingWriter{}
	}
	o := &Orchestrator{
		inspector:   inspector,
		segmenter:   segmenter,
		transcriber: transcriber,
		writer:      writer,
		loadPoll:    DefaultLoadPoll,
		heartbeat:   DefaultHeartbeat,
		loadTimeout: DefaultLoadTimeout,
		stat:        os.Stat,
		removeAll:   os.RemoveAll,
		log:         log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the whole pipeline. Per-segment failures are part of the
// outcome; only inspection, segmentation and save failures are errors
func (o *Orchestrator) Run(ctx context.Context, req Request, progress types.ProgressFunc) (types.TranscriptionOutcome, error) {
	if _, err := o.stat(req.InputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.TranscriptionOutcome{}, fmt.Errorf("%w: %s", types.ErrAudioFileNotFound, req.InputPath)
		}
		return types.TranscriptionOutcome{}, fmt.Errorf("%w: %s: %v", types.ErrAudioUnreadable, req.InputPath, err)
	}
	length := req.SegmentLength
	if length <= 0 {
		length = DefaultSegmentLength
	}

	progress.Emit(progressStart, "Starting audio segmentation...")
	file, err := o.load(ctx, req.InputPath, progress)
	if err != nil {
		return types.TranscriptionOutcome{}, err
	}
	o.log.Info().
		Str("file", file.Filename()).
		Float64("minutes", file.DurationMinutes).
		Float64("dbfs", file.VolumeDBFS).
		Msg("audio loaded")
	progress.Emit(progressLoaded, "Audio loaded, splitting into segments...")

	seg, err := o.segmenter.Split(ctx, file, length, progress)
	if err != nil {
		return types.TranscriptionOutcome{}, err
	}
	defer o.cleanup(seg)

	transcripts := o.transcribeAll(ctx, seg.Segments, progress)

	progress.Emit(progressTranscribed, "Combining all transcript segments...")
	text := Combine(transcripts)
	if strings.TrimSpace(text) == "" {
		text = EmptyTranscriptPlaceholder
	}

	progress.Emit(progressSaving, "Saving final transcript...")
	outPath := req.OutputPath
	if outPath == "" {
		name := req.Name
		if name == "" {
			name = filepath.Base(req.InputPath)
		}
		if outPath, err = o.writer.ResolveOutputPath(req.InputPath, name); err != nil {
			return types.TranscriptionOutcome{}, fmt.Errorf("resolving output path: %w", err)
		}
	}
	if err := o.writer.WriteTranscript(outPath, text); err != nil {
		return types.TranscriptionOutcome{}, fmt.Errorf("saving transcript: %w", err)
	}

	outcome := Summarize(transcripts)
	outcome.Transcript = text
	outcome.OutputPath = outPath
	progress.Emit(progressComplete, fmt.Sprintf("Transcription complete! (%d characters)", utf8.RuneCountInString(text)))

	o.log.Info().
		Str("output", outPath).
		Int("total", outcome.TotalSegments).
		Int("failed", outcome.FailedSegments).
		Ints("blocked", outcome.BlockedSegments).
		Float64("success_rate", outcome.SuccessRate()).
		Msg("transcription complete")
	return outcome, nil
}

type loadResult struct {
	file types.AudioFile
	err  error
}

// load inspects the input on its own goroutine and emits heartbeats while
// waiting, so slow metadata reads keep the progress stream alive
func (o *Orchestrator) load(ctx context.Context, path string, progress types.ProgressFunc) (types.AudioFile, error) {
	progress.Emit(progressLoading, "Loading audio file... (this can take a few minutes for long files)")

	loadCtx, cancel := context.WithTimeout(ctx, o.loadTimeout)
	defer cancel()

	done := make(chan loadResult, 1)
	go func() {
		f, err := o.inspector.Inspect(loadCtx, path)
		done <- loadResult{file: f, err: err}
	}()

	started := time.Now()
	lastBeat := started
	ticker := time.NewTicker(o.loadPoll)
	defer ticker.Stop()

	timedOut := func() error {
		return fmt.Errorf("%w: loading %s timed out after %s",
			types.ErrAudioUnreadable, filepath.Base(path), o.loadTimeout)
	}
	for {
		select {
		case res := <-done:
			if res.err != nil && ctx.Err() == nil && errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
				return types.AudioFile{}, timedOut()
			}
			return res.file, res.err
		case <-loadCtx.Done():
			if ctx.Err() != nil {
				return types.AudioFile{}, ctx.Err()
			}
			return types.AudioFile{}, timedOut()
		case now := <-ticker.C:
			if now.Sub(lastBeat) >= o.heartbeat {
				lastBeat = now
				progress.Emit(progressLoading, fmt.Sprintf("Loading audio file... (%ds elapsed)", int(now.Sub(started).Seconds())))
			}
		}
	}
}

// transcribeAll runs segments strictly in order, one remote call at a time
func (o *Orchestrator) transcribeAll(ctx context.Context, segments []types.AudioSegment, progress types.ProgressFunc) []types.SegmentTranscript {
	n := len(segments)
	progress.Emit(progressTranscribe, fmt.Sprintf("Starting transcription of %d segments...", n))

	span := progressTranscribed - progressTranscribe
	out := make([]types.SegmentTranscript, 0, n)
	for i, seg := range segments {
		progress.Emit(progressTranscribe+i*span/n, fmt.Sprintf("Transcribing segment %d of %d...", i+1, n))
		t := o.transcriber.TranscribeSegment(ctx, seg, n)
		t.Number = seg.Number
		out = append(out, t)

		msg := fmt.Sprintf("Segment %d of %d done", i+1, n)
		if t.IsError {
			msg = fmt.Sprintf("Segment %d of %d failed: %s", i+1, n, t.Error)
		}
		progress.Emit(progressTranscribe+(i+1)*span/n, msg)
	}
	return out
}

// cleanup removes segment files and the scratch directory. Failures are
// logged only
func (o *Orchestrator) cleanup(seg audio.Segmentation) {
	for _, s := range seg.Segments {
		if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.log.Warn().Err(err).Str("segment", s.Filename()).Msg("failed to remove segment file")
		}
	}
	if seg.Dir == "" {
		return
	}
	if err := o.removeAll(seg.Dir); err != nil {
		o.log.Warn().Err(err).Str("dir", seg.Dir).Msg("failed to remove scratch directory")
	}
}

// siblingWriter saves <stem>_transcript.txt next to the input
type siblingWriter struct{}

func (siblingWriter) ResolveOutputPath(inputPath, name string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return filepath.Join(filepath.Dir(inputPath), stem+"_transcript.txt"), nil
}

func (siblingWriter) WriteTranscript(path, text string) error {
	return os.WriteFile(path, []byte(text), 0o644)
}
