package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/segment-transcriber/internal/logging"
)

// Routes groups the handlers mounted on the app. History and Logs are
// optional
type Routes struct {
	Upload  *UploadHandler
	Status  *StatusHandler
	Events  *EventsHandler
	Stream  *StreamHandler
	History *HistoryHandler
	Logs    *logging.Buffer
}

// Mount registers every route on app
func (r Routes) Mount(app *fiber.App) {
	app.Get("/", Root)
	app.Get("/health", Health)

	app.Post("/transcribe", r.Upload.Handle)
	app.Get("/transcribe/status/:id", r.Status.Handle)
	app.Get("/transcribe/events/:id", r.Events.Handle)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/stream", websocket.New(r.Stream.Handle))
	app.Get("/ws/jobs/:id", websocket.New(r.Stream.HandleProgress))

	if r.History != nil {
		app.Get("/transcripts", r.History.List)
		app.Get("/transcripts/:id/text", r.History.Text)
	}
	if r.Logs != nil {
		app.Get("/logs", Logs(r.Logs))
	}
}
