package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// JobSweeper evicts jobs older than a bound
type JobSweeper interface {
	Sweep(maxAge time.Duration) int
}

// Scheduler periodically evicts old jobs and removes stale files left in the
// temp directory by uploads and interrupted segmentations. Files live on a
// longer clock than job records so a long job keeps its segments
type Scheduler struct {
	tempDir    string
	interval   time.Duration
	maxAge     time.Duration
	fileMaxAge time.Duration
	jobs       JobSweeper
	now        func() time.Time
	log        zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a new cleanup scheduler. Jobs older than maxAge are
// swept; temp files older than fileMaxAge are removed. jobs may be nil
func NewScheduler(tempDir string, interval, maxAge, fileMaxAge time.Duration, jobs JobSweeper, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		tempDir:    tempDir,
		interval:   interval,
		maxAge:     maxAge,
		fileMaxAge: max(fileMaxAge, maxAge),
		jobs:       jobs,
		now:        time.Now,
		log:        log,
	}
}

// Start runs one cleanup immediately, then one per interval until ctx is
// done or Stop is called
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	s.log.Info().Msg("running initial temp file cleanup")
	s.RunOnce()

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	ticker := time.NewTicker(s.interval)

	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-ctx.Done():
				return
			}
		}
	}()

	s.log.Info().
		Dur("interval", s.interval).
		Dur("job_max_age", s.maxAge).
		Dur("file_max_age", s.fileMaxAge).
		Msg("cleanup scheduler started")
}

// Stop stops the cleanup scheduler and waits for the loop to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info().Msg("cleanup scheduler stopped")
}

// RunOnce sweeps jobs and old files once
func (s *Scheduler) RunOnce() {
	if s.jobs != nil {
		s.jobs.Sweep(s.maxAge)
	}
	s.cleanOldFiles()
}

// cleanOldFiles removes files older than fileMaxAge from the temp directory,
// then any directories left empty
func (s *Scheduler) cleanOldFiles() {
	if s.tempDir == "" {
		return
	}
	now := s.now()

	var deletedCount int
	var deletedSize int64
	var dirs []string // old enough to remove once empty

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if info.IsDir() {
			if path != s.tempDir && now.Sub(info.ModTime()) >= s.fileMaxAge {
				dirs = append(dirs, path)
			}
			return nil
		}

		age := now.Sub(info.ModTime())
		if age < s.fileMaxAge {
			return nil
		}
		size := info.Size()
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to delete old file")
			return nil
		}
		deletedCount++
		deletedSize += size
		s.log.Debug().
			Str("file", filepath.Base(path)).
			Dur("age", age.Round(time.Minute)).
			Int64("size_kb", size/1024).
			Msg("deleted old temp file")
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("error during cleanup")
	}

	// Deepest first so nested scratch dirs empty out bottom-up
	for i := len(dirs) - 1; i >= 0; i-- {
		if entries, err := os.ReadDir(dirs[i]); err == nil && len(entries) == 0 {
			_ = os.Remove(dirs[i])
		}
	}

	if deletedCount > 0 {
		s.log.Info().
			Int("files", deletedCount).
			Float64("freed_mb", float64(deletedSize)/(1024*1024)).
			Msg("cleanup complete")
	}
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string, log zerolog.Logger) error {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return err
	}
	log.Info().Str("dir", tempDir).Msg("temp directory ready")
	return nil
}
