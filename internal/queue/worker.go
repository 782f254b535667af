package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/config"
	"github.com/codebuildervaibhav/segment-transcriber/internal/logging"
	"github.com/codebuildervaibhav/segment-transcriber/internal/pipeline"
	"github.com/codebuildervaibhav/segment-transcriber/internal/storage"
	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// exportAttempts bounds the Google Drive upload retries
const exportAttempts = 3

// Runner executes the transcription pipeline for one recording
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, progress types.ProgressFunc) (types.TranscriptionOutcome, error)
}

// Recorder persists completed jobs to the history database
type Recorder interface {
	SaveOutcome(ctx context.Context, jobID, requestName, gdriveURL string, outcome types.TranscriptionOutcome) error
}

// Exporter uploads a finished transcript and returns its share URL
type Exporter interface {
	Upload(ctx context.Context, text string, summary storage.Summary) (string, error)
}

// SummaryWriter writes the JSON sidecar next to a saved transcript
type SummaryWriter interface {
	WriteSummary(summary storage.Summary) (string, error)
}

// Submission describes one recording handed over by the request layer
type Submission struct {
	InputPath string
	// Name is the display name; defaults to the input base name
	Name           string
	SegmentMinutes int
}

// Status is the polling view of a job
type Status struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	Message    string `json:"message"`
	Transcript string `json:"transcript,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Service starts one background goroutine per submitted job and records its
// progress in the Store and the EventBus
type Service struct {
	store  *Store
	bus    *EventBus
	runner Runner

	recorder    Recorder
	exporter    Exporter
	summaries   SummaryWriter
	removeInput bool

	baseCtx context.Context
	sleep   func(time.Duration)
	remove  func(string) error
	wg      sync.WaitGroup
	log     zerolog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithRecorder saves every completed job to the history database
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithExporter uploads every completed transcript
func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithSummaryWriter writes a JSON summary next to every saved transcript
func WithSummaryWriter(w SummaryWriter) Option {
	return func(s *Service) { s.summaries = w }
}

// WithInputRemoval deletes the submitted input once its job finishes
func WithInputRemoval() Option {
	return func(s *Service) { s.removeInput = true }
}

// WithBaseContext sets the context every job runs under
func WithBaseContext(ctx context.Context) Option {
	return func(s *Service) { s.baseCtx = ctx }
}

// NewService creates the job service. A nil bus gets a default-sized one
func NewService(store *Store, bus *EventBus, runner Runner, log zerolog.Logger, opts ...Option) *Service {
	if bus == nil {
		bus = NewEventBus(0)
	}
	s := &Service{
		store:   store,
		bus:     bus,
		runner:  runner,
		baseCtx: context.Background(),
		sleep:   time.Sleep,
		remove:  os.Remove,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the job registry
func (s *Service) Store() *Store { return s.store }

// Events returns the progress event bus
func (s *Service) Events() *EventBus { return s.bus }

// Submit starts transcribing path in the background and returns the job ID
// immediately. minutes is clamped to the accepted segment length range
func (s *Service) Submit(path string, minutes int) string {
	return s.SubmitRequest(Submission{InputPath: path, SegmentMinutes: minutes})
}

// SubmitRequest is Submit with a display name
func (s *Service) SubmitRequest(sub Submission) string {
	sub.SegmentMinutes = config.ClampSegmentMinutes(sub.SegmentMinutes)
	if sub.Name == "" {
		sub.Name = filepath.Base(sub.InputPath)
	}

	id := s.store.Create(Job{
		RequestName: sub.Name,
		Status:      types.StatusProcessing,
		Message:     "File uploaded, starting transcription...",
	})
	s.publishProgress(id)

	s.wg.Add(1)
	go s.run(id, sub)
	return id
}

// Poll returns the current status of a job
func (s *Service) Poll(id string) (Status, bool) {
	job, ok := s.store.Get(id)
	if !ok {
		return Status{}, false
	}
	return Status{
		ID:         job.ID,
		Status:     job.Status,
		Progress:   job.Progress,
		Message:    job.Message,
		Transcript: job.Transcript,
		Error:      job.Error,
	}, true
}

// Wait blocks until every started job goroutine has returned
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) run(id string, sub Submission) {
	defer s.wg.Done()
	log := s.log.With().Str("job_id", logging.ShortID(id)).Logger()

	if s.removeInput {
		defer s.cleanupInput(log, sub.InputPath)
	}
	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("job goroutine panicked")
			s.fail(id, fmt.Errorf("worker panic: %v", r))
		}
	}()

	log.Info().
		Str("file", filepath.Base(sub.InputPath)).
		Int("segment_minutes", sub.SegmentMinutes).
		Msg("processing job")

	ctx := s.baseCtx
	outcome, err := s.runner.Run(ctx, pipeline.Request{
		InputPath:     sub.InputPath,
		Name:          sub.Name,
		SegmentLength: time.Duration(sub.SegmentMinutes) * time.Minute,
	}, s.progressFor(id))
	if err != nil {
		log.Error().Err(err).Msg("transcription failed")
		s.fail(id, err)
		return
	}

	summary := storage.NewSummary(id, sub.Name, outcome)
	summary.GDriveURL = s.export(ctx, log, outcome.Transcript, summary)

	if s.summaries != nil && outcome.OutputPath != "" {
		if _, err := s.summaries.WriteSummary(summary); err != nil {
			log.Warn().Err(err).Msg("failed to write transcript summary")
		}
	}
	if s.recorder != nil {
		if err := s.recorder.SaveOutcome(ctx, id, sub.Name, summary.GDriveURL, outcome); err != nil {
			log.Warn().Err(err).Msg("database save failed")
		}
	}

	s.store.Update(id, JobUpdate{
		Status:     Ptr(types.StatusCompleted),
		Progress:   Ptr(100),
		Message:    Ptr("Transcription complete!"),
		Transcript: Ptr(outcome.Transcript),
		OutputPath: Ptr(outcome.OutputPath),
		Outcome:    &outcome,
	})
	s.bus.Publish(Event{
		JobID:      id,
		Type:       EventTypeResult,
		Progress:   100,
		Message:    "Transcription complete!",
		Transcript: outcome.Transcript,
	})
	log.Info().
		Str("local", outcome.OutputPath).
		Str("gdrive", summary.GDriveURL).
		Int("failed_segments", outcome.FailedSegments).
		Msg("job completed")
}

// progressFor bridges pipeline progress into the store and the event bus
func (s *Service) progressFor(id string) types.ProgressFunc {
	return func(percent int, message string) {
		if s.store.Update(id, JobUpdate{Progress: Ptr(percent), Message: Ptr(message)}) {
			s.publishProgress(id)
		}
	}
}

func (s *Service) publishProgress(id string) {
	job, ok := s.store.Get(id)
	if !ok {
		return
	}
	s.bus.Publish(Event{
		JobID:    id,
		Type:     EventTypeProgress,
		Progress: job.Progress,
		Message:  job.Message,
	})
}

func (s *Service) fail(id string, err error) {
	msg := err.Error()
	s.store.Update(id, JobUpdate{
		Status:  Ptr(types.StatusFailed),
		Message: Ptr("Transcription failed"),
		Error:   Ptr(msg),
	})
	progress := 0
	if job, ok := s.store.Get(id); ok {
		progress = job.Progress
	}
	s.bus.Publish(Event{
		JobID:    id,
		Type:     EventTypeError,
		Progress: progress,
		Error:    msg,
	})
}

// export uploads to Google Drive with retry. Failure only logs; the local
// transcript stays authoritative
func (s *Service) export(ctx context.Context, log zerolog.Logger, text string, summary storage.Summary) string {
	if s.exporter == nil {
		return ""
	}
	var err error
	for attempt := 1; attempt <= exportAttempts; attempt++ {
		var url string
		url, err = s.exporter.Upload(ctx, text, summary)
		if err == nil {
			return url
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("of", exportAttempts).Msg("Google Drive upload failed")
		if attempt < exportAttempts {
			s.sleep(time.Duration(attempt*attempt) * time.Second)
		}
	}
	log.Warn().Msg("Google Drive upload failed after all attempts, continuing with local save only")
	return ""
}

// cleanupInput removes the submitted input file
func (s *Service) cleanupInput(log zerolog.Logger, path string) {
	if path == "" {
		return
	}
	if err := s.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove input file")
	}
}
