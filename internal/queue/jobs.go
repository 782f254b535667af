package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/logging"
	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// Job represents a transcription job
type Job struct {
	ID          string `json:"id"`
	RequestName string `json:"request_name,omitempty"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Message     string `json:"message"`
	Transcript  string `json:"transcript,omitempty"`
	Error       string `json:"error,omitempty"`
	OutputPath  string `json:"output_path,omitempty"`
	// Outcome is set once the job completes
	Outcome   *types.TranscriptionOutcome `json:"outcome,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// IsTerminal reports whether the job has completed or failed
func (j Job) IsTerminal() bool {
	return j.Status == types.StatusCompleted || j.Status == types.StatusFailed
}

// JobUpdate carries the fields to change; nil fields are left as they are
type JobUpdate struct {
	Status     *string
	Progress   *int
	Message    *string
	Transcript *string
	Error      *string
	OutputPath *string
	Outcome    *types.TranscriptionOutcome
}

// Ptr returns a pointer to v, for building a JobUpdate
func Ptr[T any](v T) *T {
	return &v
}

// Store is the in-memory job registry. A single mutex guards every access
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
	log  zerolog.Logger
}

// NewStore creates an empty job store
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		jobs: make(map[string]*Job),
		now:  time.Now,
		log:  log,
	}
}

// Create registers a job built from initial and returns its new ID
func (s *Store) Create(initial Job) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	for s.jobs[id] != nil {
		id = uuid.NewString()
	}
	job := initial
	job.ID = id
	if job.Status == "" {
		job.Status = types.StatusProcessing
	}
	job.Progress = clampProgress(job.Progress)
	job.CreatedAt = s.now()
	job.UpdatedAt = job.CreatedAt
	s.jobs[id] = &job

	s.log.Info().
		Str("job_id", logging.ShortID(id)).
		Str("name", job.RequestName).
		Int("progress", job.Progress).
		Msg(job.Message)
	return id
}

// Get returns a copy of the job
func (s *Store) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Update applies u to the job. It reports false for an unknown ID or a job
// that already reached a terminal status. Progress never moves backwards
// while the job is processing
func (s *Store) Update(id string, u JobUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	if job.IsTerminal() {
		return false
	}

	prevProgress := job.Progress
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.Progress != nil {
		if p := clampProgress(*u.Progress); p > job.Progress {
			job.Progress = p
		}
	}
	if u.Message != nil {
		job.Message = *u.Message
	}
	if u.Transcript != nil {
		job.Transcript = *u.Transcript
	}
	if u.Error != nil {
		job.Error = *u.Error
	}
	if u.OutputPath != nil {
		job.OutputPath = *u.OutputPath
	}
	if u.Outcome != nil {
		outcome := *u.Outcome
		job.Outcome = &outcome
	}
	job.UpdatedAt = s.now()

	if job.Progress != prevProgress || u.Status != nil || u.Message != nil {
		event := s.log.Info()
		if job.Status == types.StatusFailed {
			event = s.log.Error().Str("error", job.Error)
		}
		event.
			Str("job_id", logging.ShortID(id)).
			Str("status", job.Status).
			Int("progress", job.Progress).
			Msg(job.Message)
	}
	return true
}

// Sweep removes every job created maxAge or longer ago, whatever its status,
// and returns how many were removed
func (s *Store) Sweep(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, job := range s.jobs {
		if now.Sub(job.CreatedAt) >= maxAge {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Int("remaining", len(s.jobs)).Msg("swept old jobs")
	}
	return removed
}

// Len returns the number of stored jobs
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func clampProgress(p int) int {
	return min(max(p, 0), 100)
}
