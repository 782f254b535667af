package handlers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/logging"
	"github.com/codebuildervaibhav/segment-transcriber/internal/queue"
	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// UploadHandler accepts an audio upload and starts a transcription job
type UploadHandler struct {
	jobs           Jobs
	validator      *Validator
	uploadDir      string
	defaultMinutes int
	log            zerolog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(jobs Jobs, validator *Validator, uploadDir string, defaultMinutes int, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		jobs:           jobs,
		validator:      validator,
		uploadDir:      uploadDir,
		defaultMinutes: defaultMinutes,
		log:            log,
	}
}

// Handle processes the upload request
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("audio")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No audio file provided",
			"code":  "ERR_NO_FILE",
		})
	}
	if err := h.validator.ValidateFilename(file.Filename); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_FORMAT",
		})
	}
	if err := h.validator.ValidateSize(file.Size); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	raw := c.FormValue("segment_length")
	if raw == "" {
		raw = c.FormValue("chunk_length")
	}
	minutes := parseSegmentLength(raw, h.defaultMinutes)

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		name = file.Filename
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.log.Error().Err(err).Str("dir", h.uploadDir).Msg("failed to create upload directory")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save file",
			"code":  "ERR_SAVE_FAILED",
		})
	}
	tempPath := filepath.Join(h.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveFile(file, tempPath); err != nil {
		h.log.Error().Err(err).Msg("failed to save uploaded file")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save file",
			"code":  "ERR_SAVE_FAILED",
		})
	}

	jobID := h.jobs.SubmitRequest(queue.Submission{
		InputPath:      tempPath,
		Name:           name,
		SegmentMinutes: minutes,
	})
	statusURL := "/transcribe/status/" + jobID
	h.log.Info().
		Str("job_id", logging.ShortID(jobID)).
		Str("file", file.Filename).
		Int64("size", file.Size).
		Int("segment_minutes", minutes).
		Msgf("accepted job; poll GET %s for progress", statusURL)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":     jobID,
		"status":     types.StatusProcessing,
		"status_url": statusURL,
	})
}
