package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/estoque/internal/capture"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newTestClient(hub *Hub, sessionID uuid.UUID, buffer int) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, buffer),
	}
}

func connect(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	hub.register <- client
	require.Eventually(t, func() bool {
		return hub.GetConnectedClients(client.sessionID) > 0
	}, time.Second, 5*time.Millisecond)
}

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case msg, ok := <-client.send:
		require.True(t, ok, "channel closed")
		var event Event
		require.NoError(t, json.Unmarshal(msg, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Event{}
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.sessions)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
}

func TestHub_AddAndRemoveClient(t *testing.T) {
	hub := runHub(t)
	sessionID := uuid.New()
	client := newTestClient(hub, sessionID, 1)

	connect(t, hub, client)
	assert.Equal(t, 1, hub.GetConnectedClients(sessionID))

	hub.unregister <- client
	require.Eventually(t, func() bool {
		return hub.GetConnectedClients(sessionID) == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := <-client.send
	assert.False(t, ok, "send channel should be closed")
}

func TestHub_Events(t *testing.T) {
	sessionID := uuid.New()
	detection := domain.Detection{
		Box:        domain.BoundingBox{X: 10, Y: 20, Width: 100, Height: 120},
		Landmarks:  []domain.Point{{X: 40, Y: 60}},
		Descriptor: []float64{0.1, 0.2, 0.3},
		Score:      0.91,
	}

	tests := []struct {
		name     string
		publish  func(h *Hub)
		wantType EventType
		check    func(t *testing.T, data interface{})
	}{
		{
			name:     "draw",
			publish:  func(h *Hub) { h.Draw(sessionID, detection) },
			wantType: EventDetection,
			check: func(t *testing.T, data interface{}) {
				m := data.(map[string]interface{})
				assert.InDelta(t, 0.91, m["score"], 0.0001)
				assert.Contains(t, m, "box")
				assert.Len(t, m["landmarks"], 1)
				assert.NotContains(t, m, "descriptor")
				assert.NotContains(t, m, "Descriptor")
			},
		},
		{
			name:     "clear",
			publish:  func(h *Hub) { h.Clear(sessionID) },
			wantType: EventOverlayClear,
			check: func(t *testing.T, data interface{}) {
				assert.Nil(t, data)
			},
		},
		{
			name:     "status",
			publish:  func(h *Hub) { h.StatusChanged(sessionID, domain.StatusCaptured) },
			wantType: EventStatus,
			check: func(t *testing.T, data interface{}) {
				m := data.(map[string]interface{})
				assert.Equal(t, string(domain.StatusCaptured), m["status"])
			},
		},
		{
			name: "notification",
			publish: func(h *Hub) {
				h.Notify(sessionID, capture.Warning(domain.ErrNoFaceDetected))
			},
			wantType: EventNotification,
			check: func(t *testing.T, data interface{}) {
				m := data.(map[string]interface{})
				assert.Equal(t, "warning", m["level"])
				assert.Equal(t, domain.ErrNoFaceDetected.Code, m["code"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := runHub(t)
			client := newTestClient(hub, sessionID, 10)
			connect(t, hub, client)

			tt.publish(hub)

			event := receive(t, client)
			assert.Equal(t, tt.wantType, event.Type)
			assert.Equal(t, sessionID, event.SessionID)
			tt.check(t, event.Data)
		})
	}
}

func TestHub_DrawKeepsDescriptorOffTheQueue(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	hub.Draw(sessionID, domain.Detection{Descriptor: []float64{0.5}, Score: 0.7})

	event := <-hub.broadcast
	data, ok := event.Data.(detectionData)
	require.True(t, ok, "detection events carry the overlay view")
	assert.InDelta(t, 0.7, data.Score, 0.0001)
}

func TestHub_SessionIsolation(t *testing.T) {
	hub := runHub(t)

	session1 := uuid.New()
	session2 := uuid.New()
	client1 := newTestClient(hub, session1, 10)
	client2 := newTestClient(hub, session2, 10)
	connect(t, hub, client1)
	connect(t, hub, client2)

	hub.Clear(session1)

	event := receive(t, client1)
	assert.Equal(t, EventOverlayClear, event.Type)

	select {
	case <-client2.send:
		t.Fatal("client2 should not receive events of session1")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_EventOrder(t *testing.T) {
	hub := runHub(t)
	sessionID := uuid.New()
	client := newTestClient(hub, sessionID, 10)
	connect(t, hub, client)

	hub.StatusChanged(sessionID, domain.StatusStreaming)
	hub.StatusChanged(sessionID, domain.StatusFaceDetected)
	hub.StatusChanged(sessionID, domain.StatusCaptured)

	for _, want := range []domain.CaptureStatus{
		domain.StatusStreaming, domain.StatusFaceDetected, domain.StatusCaptured,
	} {
		event := receive(t, client)
		assert.Equal(t, string(want), event.Data.(map[string]interface{})["status"])
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := runHub(t)
	sessionID := uuid.New()
	slow := newTestClient(hub, sessionID, 0)
	connect(t, hub, slow)

	hub.Clear(sessionID)

	require.Eventually(t, func() bool {
		return hub.GetConnectedClients(sessionID) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := runHub(t)

	assert.NotPanics(t, func() {
		hub.Clear(uuid.New())
	})
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	// not running: the queue fills up and further events are dropped
	hub := NewHub()
	sessionID := uuid.New()

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			hub.Clear(sessionID)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}
	assert.Len(t, hub.broadcast, cap(hub.broadcast))
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := newTestClient(hub, uuid.New(), 1)
	connect(t, hub, client)

	cancel()
	<-stopped

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.GetConnectedClients(client.sessionID))
}

func TestClient_RejectFrame(t *testing.T) {
	t.Run("invalid image is reported to the sender", func(t *testing.T) {
		hub := runHub(t)
		client := newTestClient(hub, uuid.New(), 1)
		client.logger = discardLogger()
		connect(t, hub, client)

		client.rejectFrame(domain.ErrInvalidImage.WithError(errors.New("decode")))

		event := receive(t, client)
		assert.Equal(t, EventNotification, event.Type)
		assert.Equal(t, domain.ErrInvalidImage.Code, event.Data.(map[string]interface{})["code"])
	})

	t.Run("closed source is silent", func(t *testing.T) {
		hub := runHub(t)
		client := newTestClient(hub, uuid.New(), 1)
		client.logger = discardLogger()
		connect(t, hub, client)

		client.rejectFrame(capture.ErrSourceClosed)

		assert.Empty(t, client.send)
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
