package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/storage"
)

const defaultHistoryLimit = 50

// History lists completed jobs
type History interface {
	ListTranscripts(ctx context.Context, limit int) ([]storage.TranscriptRecord, error)
	GetTranscript(ctx context.Context, jobID string) (storage.TranscriptRecord, error)
}

// TranscriptReader loads a saved transcript from disk
type TranscriptReader interface {
	ReadTranscript(path string) (string, error)
}

// HistoryHandler serves the transcript history
type HistoryHandler struct {
	history History
	reader  TranscriptReader
	log     zerolog.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history History, reader TranscriptReader, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, reader: reader, log: log}
}

// List returns the most recent transcripts
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, err := h.history.ListTranscripts(c.UserContext(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list transcripts")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if records == nil {
		records = []storage.TranscriptRecord{}
	}
	return c.JSON(records)
}

// Text returns the saved transcript of one job
func (h *HistoryHandler) Text(c *fiber.Ctx) error {
	record, err := h.history.GetTranscript(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Transcript not found"})
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load transcript record")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if record.LocalPath == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Transcript file path not found"})
	}

	text, err := h.reader.ReadTranscript(record.LocalPath)
	if err != nil {
		h.log.Error().Err(err).Str("path", record.LocalPath).Msg("failed to read transcript file")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read transcript file"})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(text)
}
