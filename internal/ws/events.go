package ws

import (
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

type EventType string

const (
	EventDetection    EventType = "detection"
	EventOverlayClear EventType = "overlay.clear"
	EventStatus       EventType = "status"
	EventNotification EventType = "notification"
)

type Event struct {
	SessionID uuid.UUID   `json:"session_id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type statusData struct {
	Status string `json:"status"`
}

// detectionData is what the overlay draws. The descriptor stays server side.
type detectionData struct {
	Box       domain.BoundingBox `json:"box"`
	Landmarks []domain.Point     `json:"landmarks,omitempty"`
	Score     float64            `json:"score"`
}

func newDetectionData(d domain.Detection) detectionData {
	return detectionData{Box: d.Box, Landmarks: d.Landmarks, Score: d.Score}
}
