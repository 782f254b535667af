package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

func newTestDB(t *testing.T) *MetadataDB {
	t.Helper()
	db, err := NewMetadataDB(filepath.Join(t.TempDir(), "transcripts.db"))
	if err != nil {
		t.Fatalf("NewMetadataDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMetadataDBSaveAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	outcome := types.TranscriptionOutcome{
		Transcript:         "hello",
		OutputPath:         "/out/a_transcript.txt",
		TotalSegments:      4,
		SuccessfulSegments: 2,
		FailedSegments:     2,
		BlockedSegments:    []int{1, 3},
	}
	if err := db.SaveOutcome(ctx, "job-1", "a.mp3", "https://drive.test/x", outcome); err != nil {
		t.Fatalf("SaveOutcome() error = %v", err)
	}

	rec, err := db.GetTranscript(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetTranscript() error = %v", err)
	}
	if rec.RequestName != "a.mp3" || rec.LocalPath != outcome.OutputPath || rec.GDriveURL != "https://drive.test/x" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.TotalSegments != 4 || rec.FailedSegments != 2 || rec.Characters != 5 {
		t.Fatalf("counts = %+v", rec)
	}
	if len(rec.BlockedSegments) != 2 || rec.BlockedSegments[0] != 1 || rec.BlockedSegments[1] != 3 {
		t.Fatalf("blocked = %v", rec.BlockedSegments)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}

	if err := db.SaveOutcome(ctx, "job-1", "a.mp3", "", outcome); err == nil {
		t.Fatal("duplicate job id should fail")
	}
}

func TestMetadataDBNotFound(t *testing.T) {
	_, err := newTestDB(t).GetTranscript(context.Background(), "missing")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestMetadataDBList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := db.SaveOutcome(ctx, id, id+".wav", "", types.TranscriptionOutcome{OutputPath: "/o/" + id}); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := db.ListTranscripts(ctx, 2)
	if err != nil {
		t.Fatalf("ListTranscripts() error = %v", err)
	}
	if len(recs) != 2 || recs[0].JobID != "c" || recs[1].JobID != "b" {
		t.Fatalf("records = %+v", recs)
	}
	if len(recs[0].BlockedSegments) != 0 {
		t.Fatalf("blocked = %v", recs[0].BlockedSegments)
	}
}
