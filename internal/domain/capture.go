package domain

import (
	"time"

	"github.com/google/uuid"
)

// Point is a 2D landmark coordinate in frame pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox represents the face area in the frame
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one face located in a frame.
type Detection struct {
	Box        BoundingBox `json:"box"`
	Landmarks  []Point     `json:"landmarks,omitempty"`
	Descriptor []float64   `json:"-"`
	Score      float64     `json:"score"`
}

type CaptureStatus string

const (
	StatusIdle          CaptureStatus = "idle"
	StatusModelsLoading CaptureStatus = "models_loading"
	StatusStreaming     CaptureStatus = "streaming"
	StatusFaceDetected  CaptureStatus = "face_detected"
	StatusCaptured      CaptureStatus = "captured"
	StatusVerifying     CaptureStatus = "verifying"
	StatusVerified      CaptureStatus = "verified"
	StatusFailed        CaptureStatus = "failed"
)

// Live reports whether the polling loop runs in this status.
func (s CaptureStatus) Live() bool {
	return s == StatusStreaming || s == StatusFaceDetected
}

// CapturePurpose tells the flow what the still will be used for.
type CapturePurpose string

const (
	PurposeLogin    CapturePurpose = "login"
	PurposeRegister CapturePurpose = "register"
)

// CaptureSession is a read-only snapshot of one capture attempt.
type CaptureSession struct {
	ID              uuid.UUID      `json:"id"`
	Purpose         CapturePurpose `json:"purpose"`
	Status          CaptureStatus  `json:"status"`
	LatestDetection *Detection     `json:"latest_detection,omitempty"`
	Score           float64        `json:"score"`
	Still           []byte         `json:"-"`
	ClaimedIdentity string         `json:"claimed_identity,omitempty"`
	VerifiedAs      string         `json:"verified_as,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// HasStill reports whether a captured image is held by the session.
func (s CaptureSession) HasStill() bool {
	return len(s.Still) > 0
}

type VerificationOutcome string

const (
	OutcomeVerified     VerificationOutcome = "verified"
	OutcomeNotMatched   VerificationOutcome = "not_matched"
	OutcomeServerError  VerificationOutcome = "server_error"
	OutcomeNetworkError VerificationOutcome = "network_error"
)

// VerificationResult is the classified outcome of one verification round-trip.
type VerificationResult struct {
	Outcome  VerificationOutcome `json:"outcome"`
	Reason   string              `json:"reason,omitempty"`
	Distance *float64            `json:"distance,omitempty"`
}

func Verified() VerificationResult {
	return VerificationResult{Outcome: OutcomeVerified}
}

func NotMatched(reason string) VerificationResult {
	return VerificationResult{Outcome: OutcomeNotMatched, Reason: reason}
}

func ServerError(message string) VerificationResult {
	return VerificationResult{Outcome: OutcomeServerError, Reason: message}
}

func NetworkError(message string) VerificationResult {
	return VerificationResult{Outcome: OutcomeNetworkError, Reason: message}
}

// Ok reports whether the face was verified.
func (r VerificationResult) Ok() bool {
	return r.Outcome == OutcomeVerified
}

// Err maps a failed outcome to its AppError, nil when verified.
func (r VerificationResult) Err() error {
	var base *AppError
	switch r.Outcome {
	case OutcomeVerified:
		return nil
	case OutcomeNotMatched:
		base = ErrVerificationMismatch
	case OutcomeNetworkError:
		base = ErrVerificationNetwork
	default:
		base = ErrVerificationServer
	}
	if r.Reason == "" {
		return base
	}
	return &AppError{
		Code:       base.Code,
		Message:    base.Message + ": " + r.Reason,
		StatusCode: base.StatusCode,
	}
}

// VerificationAttempt is the audit record of one verification call.
type VerificationAttempt struct {
	ID        uuid.UUID           `json:"id"`
	SessionID uuid.UUID           `json:"session_id"`
	Identity  string              `json:"identity"`
	Outcome   VerificationOutcome `json:"outcome"`
	Reason    string              `json:"reason,omitempty"`
	LatencyMs int64               `json:"latency_ms"`
	CreatedAt time.Time           `json:"created_at"`
}
