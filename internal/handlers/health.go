package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/segment-transcriber/internal/logging"
)

// ServiceName identifies the API on the root endpoint
const ServiceName = "audio-transcription-api"

// Root answers platform pings on /
func Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "service": ServiceName})
}

// Health answers /health
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Logs returns the buffered server log lines
func Logs(buf *logging.Buffer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"logs": buf.Lines()})
	}
}
