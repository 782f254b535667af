package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/logging"
	"github.com/codebuildervaibhav/segment-transcriber/internal/queue"
	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// streamEndMarker ends a streamed upload
const streamEndMarker = "END"

// defaultStreamExt is used when the stream name carries no allowed extension
const defaultStreamExt = ".webm"

// StreamHandler handles WebSocket audio streaming and progress push
type StreamHandler struct {
	jobs           Jobs
	validator      *Validator
	uploadDir      string
	defaultMinutes int
	log            zerolog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(jobs Jobs, validator *Validator, uploadDir string, defaultMinutes int, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		jobs:           jobs,
		validator:      validator,
		uploadDir:      uploadDir,
		defaultMinutes: defaultMinutes,
		log:            log,
	}
}

// Handle receives a recording over the socket: text messages set the
// recording name, binary messages carry audio, and "END" starts the job
// Progress frames follow on the same connection until the job finishes
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	connID := uuid.NewString()
	log := h.log.With().Str("conn", logging.ShortID(connID)).Logger()
	log.Info().Msg("websocket stream connected")

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		log.Error().Err(err).Msg("failed to create upload directory")
		_ = c.WriteJSON(map[string]any{"error": "Failed to save stream"})
		return
	}
	tempPath := filepath.Join(h.uploadDir, connID+".part")
	f, err := os.Create(tempPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to create stream file")
		_ = c.WriteJSON(map[string]any{"error": "Failed to save stream"})
		return
	}
	discard := func() {
		f.Close()
		os.Remove(tempPath)
	}

	var (
		requestName string
		minutes     = h.defaultMinutes
		size        int64
		ended       bool
	)
	for !ended {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Info().Err(err).Msg("websocket closed before END")
			discard()
			return
		}

		switch messageType {
		case websocket.TextMessage:
			msg := strings.TrimSpace(string(message))
			switch {
			case msg == streamEndMarker:
				ended = true
			case strings.HasPrefix(msg, "segment_length="):
				minutes = parseSegmentLength(strings.TrimPrefix(msg, "segment_length="), h.defaultMinutes)
			case len(msg) > 0 && len(msg) < 200:
				requestName = msg
			}
		case websocket.BinaryMessage:
			size += int64(len(message))
			if err := h.validator.ValidateSize(size); err != nil {
				_ = c.WriteJSON(map[string]any{"error": err.Error()})
				discard()
				return
			}
			if _, err := f.Write(message); err != nil {
				log.Error().Err(err).Msg("failed to write stream chunk")
				_ = c.WriteJSON(map[string]any{"error": "Failed to save stream"})
				discard()
				return
			}
		}
	}

	if size == 0 {
		log.Info().Msg("no audio data received")
		_ = c.WriteJSON(map[string]any{"error": "No audio data received"})
		discard()
		return
	}
	if err := f.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close stream file")
		os.Remove(tempPath)
		return
	}

	if requestName == "" {
		requestName = "stream_recording"
	}
	ext := defaultStreamExt
	if h.validator.ValidateFilename(requestName) == nil {
		ext = strings.ToLower(filepath.Ext(requestName))
	}
	inputPath := strings.TrimSuffix(tempPath, ".part") + ext
	if err := os.Rename(tempPath, inputPath); err != nil {
		log.Error().Err(err).Msg("failed to finalize stream file")
		os.Remove(tempPath)
		return
	}
	log.Info().Int64("bytes", size).Str("path", inputPath).Msg("stream saved")

	jobID := h.jobs.SubmitRequest(queue.Submission{
		InputPath:      inputPath,
		Name:           requestName,
		SegmentMinutes: minutes,
	})
	if err := c.WriteJSON(map[string]any{"job_id": jobID, "status": types.StatusProcessing}); err != nil {
		return
	}
	h.push(c, jobID, log)
}

// HandleProgress pushes progress frames for the job named in the path
func (h *StreamHandler) HandleProgress(c *websocket.Conn) {
	defer c.Close()

	id := c.Params("id")
	if _, ok := h.jobs.Poll(id); !ok {
		_ = c.WriteJSON(map[string]any{"error": "Job not found"})
		return
	}
	h.push(c, id, h.log)
}

// push follows the job until it finishes or the client goes away
func (h *StreamHandler) push(c *websocket.Conn, jobID string, log zerolog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reads only detect the close; clients send nothing after END
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err := follow(ctx, h.jobs, jobID, followInterval, func(e queue.Event) error {
		return c.WriteJSON(frame(e))
	})
	if err != nil {
		log.Debug().Err(err).Str("job_id", logging.ShortID(jobID)).Msg("progress push ended")
	}
}
