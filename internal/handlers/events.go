package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/codebuildervaibhav/segment-transcriber/internal/logging"
	"github.com/codebuildervaibhav/segment-transcriber/internal/queue"
)

// EventsHandler streams job progress as server-sent events
type EventsHandler struct {
	jobs Jobs
	log  zerolog.Logger
}

// NewEventsHandler creates a new SSE handler
func NewEventsHandler(jobs Jobs, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{jobs: jobs, log: log}
}

// Handle writes one `data:` frame per event until the job finishes
func (h *EventsHandler) Handle(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, ok := h.jobs.Poll(id); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Job not found"})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log := h.log.With().Str("job_id", logging.ShortID(id)).Logger()
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		err := follow(context.Background(), h.jobs, id, followInterval, func(e queue.Event) error {
			return writeSSE(w, frame(e))
		})
		if err != nil {
			log.Debug().Err(err).Msg("event stream closed")
		}
	}))
	return nil
}

func writeSSE(w *bufio.Writer, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		return err
	}
	return w.Flush()
}
