package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

const (
	transcriptSuffix = "_transcript.txt"
	summarySuffix    = "_meta.json"
	maxNameLength    = 100
)

// LocalStorage handles saving transcripts to the local filesystem
type LocalStorage struct {
	outputDir string
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// Summary is the JSON sidecar written next to each transcript
type Summary struct {
	JobID              string    `json:"job_id"`
	RequestName        string    `json:"request_name"`
	LocalPath          string    `json:"local_path"`
	GDriveURL          string    `json:"gdrive_url,omitempty"`
	TotalSegments      int       `json:"total_segments"`
	SuccessfulSegments int       `json:"successful_segments"`
	FailedSegments     int       `json:"failed_segments"`
	BlockedSegments    []int     `json:"blocked_segments"`
	SuccessRate        float64   `json:"success_rate"`
	Characters         int       `json:"characters"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewSummary builds the sidecar record of a finished job
func NewSummary(jobID, requestName string, outcome types.TranscriptionOutcome) Summary {
	blocked := outcome.BlockedSegments
	if blocked == nil {
		blocked = []int{}
	}
	return Summary{
		JobID:              jobID,
		RequestName:        requestName,
		LocalPath:          outcome.OutputPath,
		TotalSegments:      outcome.TotalSegments,
		SuccessfulSegments: outcome.SuccessfulSegments,
		FailedSegments:     outcome.FailedSegments,
		BlockedSegments:    blocked,
		SuccessRate:        outcome.SuccessRate(),
		Characters:         len([]rune(outcome.Transcript)),
		CreatedAt:          time.Now().UTC(),
	}
}

// ResolveOutputPath returns a dated transcript path for a recording:
// outputs/2025/01/23/20250123_143022_podcast_episode_transcript.txt
func (ls *LocalStorage) ResolveOutputPath(inputPath, name string) (string, error) {
	if name == "" {
		name = filepath.Base(inputPath)
	}
	now := ls.now()
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	filename := fmt.Sprintf("%s_%s%s", now.Format("20060102_150405"), sanitizeFilename(stem), transcriptSuffix)
	return filepath.Join(dateDir, filename), nil
}

// WriteTranscript saves the transcript as UTF-8 text
func (ls *LocalStorage) WriteTranscript(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.ToValidUTF8(text, "�")), 0644); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// WriteSummary saves the JSON sidecar next to the transcript and returns its path
func (ls *LocalStorage) WriteSummary(summary Summary) (string, error) {
	if summary.LocalPath == "" {
		return "", fmt.Errorf("summary has no transcript path")
	}
	metaPath := SummaryPath(summary.LocalPath)

	metaJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %w", err)
	}
	return metaPath, nil
}

// ReadTranscript loads a saved transcript
func (ls *LocalStorage) ReadTranscript(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return string(b), nil
}

// SummaryPath derives the sidecar path of a transcript
func SummaryPath(transcriptPath string) string {
	base := strings.TrimSuffix(transcriptPath, transcriptSuffix)
	if base == transcriptPath {
		base = strings.TrimSuffix(transcriptPath, filepath.Ext(transcriptPath))
	}
	return base + summarySuffix
}

// sanitizeFilename replaces path separators and reserved characters
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	result := strings.TrimSpace(replacer.Replace(name))
	result = strings.Join(strings.Fields(result), "_")
	if result == "" || result == "." || result == ".." {
		result = "recording"
	}
	if r := []rune(result); len(r) > maxNameLength {
		result = string(r[:maxNameLength])
	}
	return result
}
