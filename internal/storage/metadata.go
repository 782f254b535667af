package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// ErrRecordNotFound is returned when no history row matches a job ID
var ErrRecordNotFound = errors.New("transcript record not found")

// TranscriptRecord is one row of the job history
type TranscriptRecord struct {
	JobID              string    `json:"job_id"`
	RequestName        string    `json:"request_name"`
	LocalPath          string    `json:"local_path"`
	GDriveURL          string    `json:"gdrive_url,omitempty"`
	TotalSegments      int       `json:"total_segments"`
	SuccessfulSegments int       `json:"successful_segments"`
	FailedSegments     int       `json:"failed_segments"`
	BlockedSegments    []int     `json:"blocked_segments"`
	Characters         int       `json:"characters"`
	CreatedAt          time.Time `json:"created_at"`
}

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB creates a new metadata database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		request_name TEXT NOT NULL,
		local_path TEXT NOT NULL,
		gdrive_url TEXT NOT NULL DEFAULT '',
		total_segments INTEGER NOT NULL,
		successful_segments INTEGER NOT NULL,
		failed_segments INTEGER NOT NULL,
		blocked_segments TEXT NOT NULL DEFAULT '',
		characters INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_created_at ON transcripts(created_at);
	CREATE INDEX IF NOT EXISTS idx_request_name ON transcripts(request_name);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveOutcome records a finished job
func (mdb *MetadataDB) SaveOutcome(ctx context.Context, jobID, requestName, gdriveURL string, outcome types.TranscriptionOutcome) error {
	query := `
	INSERT INTO transcripts (job_id, request_name, local_path, gdrive_url, total_segments,
		successful_segments, failed_segments, blocked_segments, characters, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := mdb.db.ExecContext(ctx, query, jobID, requestName, outcome.OutputPath, gdriveURL,
		outcome.TotalSegments, outcome.SuccessfulSegments, outcome.FailedSegments,
		joinSegments(outcome.BlockedSegments), len([]rune(outcome.Transcript)), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save transcript metadata: %w", err)
	}

	return nil
}

const selectColumns = `job_id, request_name, local_path, gdrive_url, total_segments,
	successful_segments, failed_segments, blocked_segments, characters, created_at`

// GetTranscript retrieves transcript metadata by job ID
func (mdb *MetadataDB) GetTranscript(ctx context.Context, jobID string) (TranscriptRecord, error) {
	row := mdb.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM transcripts WHERE job_id = ?`, jobID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TranscriptRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return TranscriptRecord{}, fmt.Errorf("failed to get transcript: %w", err)
	}
	return rec, nil
}

// ListTranscripts returns the most recent transcripts first
func (mdb *MetadataDB) ListTranscripts(ctx context.Context, limit int) ([]TranscriptRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := mdb.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM transcripts ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	transcripts := []TranscriptRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read transcript row: %w", err)
		}
		transcripts = append(transcripts, rec)
	}
	return transcripts, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (TranscriptRecord, error) {
	var (
		rec       TranscriptRecord
		blocked   string
		createdAt int64
	)
	err := s.Scan(&rec.JobID, &rec.RequestName, &rec.LocalPath, &rec.GDriveURL, &rec.TotalSegments,
		&rec.SuccessfulSegments, &rec.FailedSegments, &blocked, &rec.Characters, &createdAt)
	if err != nil {
		return TranscriptRecord{}, err
	}
	rec.BlockedSegments = splitSegments(blocked)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	return rec, nil
}

func joinSegments(ns []int) string {
	s := make([]string, len(ns))
	for i, n := range ns {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, ",")
}

func splitSegments(s string) []int {
	out := []int{}
	for _, part := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
