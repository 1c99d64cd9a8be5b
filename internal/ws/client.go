package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/capture"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 << 20
)

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID uuid.UUID
	sink      FrameSink
	send      chan []byte
	logger    *slog.Logger
}

// ReadPump forwards binary messages to the session as camera frames. Text
// messages are ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if err := c.sink.PushFrame(c.sessionID, data); err != nil {
			c.rejectFrame(err)
		}
	}
}

// rejectFrame reports a refused frame to this client only. Frames arriving
// while the session is not streaming are dropped silently.
func (c *Client) rejectFrame(err error) {
	if errors.Is(err, capture.ErrSourceClosed) {
		return
	}
	c.logger.Debug("frame rejected", slog.String("error", err.Error()))

	message, mErr := json.Marshal(Event{
		SessionID: c.sessionID,
		Type:      EventNotification,
		Data:      capture.Warning(err),
		Timestamp: time.Now(),
	})
	if mErr != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- message:
	default:
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
