package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSweeper struct {
	calls  int
	maxAge time.Duration
}

func (c *countingSweeper) Sweep(maxAge time.Duration) int {
	c.calls++
	c.maxAge = maxAge
	return 0
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestRunOnceRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	oldFile := filepath.Join(dir, "uploads", "old.mp3")
	freshFile := filepath.Join(dir, "uploads", "fresh.mp3")
	oldScratch := filepath.Join(dir, "audio_segments_1", "0001.mp3")
	touch(t, oldFile, now.Add(-2*time.Hour))
	touch(t, freshFile, now)
	touch(t, oldScratch, now.Add(-2*time.Hour))
	old := now.Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Dir(oldScratch), old, old); err != nil {
		t.Fatal(err)
	}

	sweeper := &countingSweeper{}
	s := NewScheduler(dir, time.Minute, time.Hour, time.Hour, sweeper, zerolog.Nop())
	s.RunOnce()

	if sweeper.calls != 1 || sweeper.maxAge != time.Hour {
		t.Errorf("sweeper = %+v", sweeper)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Errorf("old file kept: %v", err)
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Errorf("fresh file removed: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(oldScratch)); !os.IsNotExist(err) {
		t.Errorf("empty scratch dir kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "uploads")); err != nil {
		t.Errorf("non-empty dir removed: %v", err)
	}
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(t.TempDir(), time.Hour, time.Hour, 24*time.Hour, sweeper, zerolog.Nop())

	s.Start(context.Background())
	s.Stop()
	s.Stop()

	if sweeper.calls != 1 {
		t.Fatalf("sweep calls = %d, want 1", sweeper.calls)
	}
}

func TestRunOnceKeepsSegmentsOfLongJobs(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	segment := filepath.Join(dir, "audio_segments_123", "0007.mp3")
	stale := filepath.Join(dir, "uploads", "stale.mp3")
	touch(t, segment, now.Add(-61*time.Minute))
	touch(t, stale, now.Add(-25*time.Hour))

	sweeper := &countingSweeper{}
	s := NewScheduler(dir, time.Minute, time.Hour, 24*time.Hour, sweeper, zerolog.Nop())
	s.RunOnce()

	if sweeper.maxAge != time.Hour {
		t.Errorf("job sweep age = %v, want 1h", sweeper.maxAge)
	}
	if _, err := os.Stat(segment); err != nil {
		t.Errorf("segment of a running job removed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale upload kept: %v", err)
	}
}

func TestFileAgeNeverBelowJobAge(t *testing.T) {
	s := NewScheduler(t.TempDir(), time.Minute, 2*time.Hour, time.Minute, nil, zerolog.Nop())
	if s.fileMaxAge != 2*time.Hour {
		t.Fatalf("file max age = %v, want 2h", s.fileMaxAge)
	}
}
