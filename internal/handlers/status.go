package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// StatusHandler serves job status for polling clients
type StatusHandler struct {
	jobs Jobs
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(jobs Jobs) *StatusHandler {
	return &StatusHandler{jobs: jobs}
}

// Handle returns the current status of the job named in the path
func (h *StatusHandler) Handle(c *fiber.Ctx) error {
	st, ok := h.jobs.Poll(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Job not found"})
	}
	return c.JSON(fiber.Map{
		"id":         st.ID,
		"status":     st.Status,
		"progress":   st.Progress,
		"message":    st.Message,
		"transcript": nullable(st.Transcript),
		"error":      nullable(st.Error),
	})
}

// nullable renders an empty string as JSON null
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
