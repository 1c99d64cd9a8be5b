package ws

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/capture"
)

// FrameSink receives frames pushed by the browser. capture.Registry
// implements it.
type FrameSink interface {
	Get(id uuid.UUID) (*capture.Controller, error)
	PushFrame(id uuid.UUID, data []byte) error
}

// Handler serves GET /v1/capture/sessions/:id/ws. UpgradeMiddleware must run
// first; it resolves the session.
func Handler(hub *Hub, sink FrameSink, logger *slog.Logger) fiber.Handler {
	logger = logger.With("component", "ws")

	return websocket.New(func(c *websocket.Conn) {
		sessionID, ok := c.Locals("session_id").(uuid.UUID)
		if !ok {
			_ = c.Close()
			return
		}

		client := &Client{
			hub:       hub,
			conn:      c,
			sessionID: sessionID,
			sink:      sink,
			send:      make(chan []byte, 256),
			logger:    logger.With("session_id", sessionID.String()),
		}

		if !hub.join(client) {
			_ = c.Close()
			return
		}

		// current status first, so a late subscriber can render the overlay
		if ctrl, err := sink.Get(sessionID); err == nil {
			hub.StatusChanged(sessionID, ctrl.Status())
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// UpgradeMiddleware rejects plain HTTP requests and unknown sessions before
// the connection is upgraded.
func UpgradeMiddleware(sink FrameSink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.ErrBadRequest
		}
		if _, err := sink.Get(id); err != nil {
			return err
		}

		c.Locals("session_id", id)
		return c.Next()
	}
}
