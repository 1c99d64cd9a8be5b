package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// CaptureSessionRequest opens a capture session
type CaptureSessionRequest struct {
	Purpose  string `json:"purpose" example:"login"`
	Identity string `json:"identity,omitempty" example:"ana@estoque.dev"`
}

// DetectionData is the latest face found in the preview
type DetectionData struct {
	Box struct {
		X      float64 `json:"x" example:"96"`
		Y      float64 `json:"y" example:"54"`
		Width  float64 `json:"width" example:"128"`
		Height float64 `json:"height" example:"140"`
	} `json:"box"`
	Score float64 `json:"score" example:"0.93"`
}

// CaptureSessionResponse is a capture session snapshot
type CaptureSessionResponse struct {
	ID              string         `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Purpose         string         `json:"purpose" example:"login"`
	Status          string         `json:"status" example:"face_detected"`
	LatestDetection *DetectionData `json:"latest_detection,omitempty"`
	Score           float64        `json:"score" example:"0.93"`
	ClaimedIdentity string         `json:"claimed_identity,omitempty" example:"ana@estoque.dev"`
	VerifiedAs      string         `json:"verified_as,omitempty" example:""`
	LastError       string         `json:"last_error,omitempty" example:""`
	CreatedAt       string         `json:"created_at" example:"2024-01-01T00:00:00Z"`
}

// VerifyFaceRequest names the identity to verify against
type VerifyFaceRequest struct {
	Identity string `json:"identity,omitempty" example:"ana@estoque.dev"`
}

// VerificationResultData is the classified verification outcome
type VerificationResultData struct {
	Outcome string `json:"outcome" example:"verified"`
	Reason  string `json:"reason,omitempty" example:""`
}

// VerifyFaceResponse is returned by the verify endpoint
type VerifyFaceResponse struct {
	Result  VerificationResultData `json:"result"`
	Session CaptureSessionResponse `json:"session"`
}

// VerificationAttemptData is one logged verification call
type VerificationAttemptData struct {
	ID        string `json:"id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	SessionID string `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Identity  string `json:"identity" example:"ana@estoque.dev"`
	Outcome   string `json:"outcome" example:"not_matched"`
	Reason    string `json:"reason,omitempty" example:"face does not match"`
	LatencyMs int64  `json:"latency_ms" example:"412"`
	CreatedAt string `json:"created_at" example:"2024-01-01T00:00:00Z"`
}

// AttemptsResponse lists the verification attempts of a session
type AttemptsResponse struct {
	SessionID string                    `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Attempts  []VerificationAttemptData `json:"attempts"`
}

// LoginRequest submits credentials
type LoginRequest struct {
	Email     string `json:"email" example:"ana@estoque.dev"`
	Password  string `json:"password" example:"s3cret"`
	Role      string `json:"role" example:"USER"`
	SessionID string `json:"session_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// LoginResponse carries the backend token
type LoginResponse struct {
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiJ9..."`
}

// RegisterUserRequest creates a user on the backend
type RegisterUserRequest struct {
	Username  string `json:"username" example:"ana"`
	Email     string `json:"email" example:"ana@estoque.dev"`
	Password  string `json:"password" example:"s3cret"`
	Role      string `json:"role" example:"USER"`
	Status    string `json:"status" example:"ACTIVE"`
	SessionID string `json:"session_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// SettingsData holds the console toggles
type SettingsData struct {
	FacialRecognition bool   `json:"facial_recognition" example:"true"`
	UpdatedAt         string `json:"updated_at,omitempty" example:"2024-01-01T00:00:00Z"`
}

// WeeklyPoint is one ISO week of the entries/exits chart
type WeeklyPoint struct {
	Label         string `json:"label" example:"2024-W10"`
	Year          int    `json:"year" example:"2024"`
	Week          int    `json:"week" example:"10"`
	EntryQuantity int64  `json:"entry_quantity" example:"42"`
	EntryValue    string `json:"entry_value" example:"1250.00"`
	ExitQuantity  int64  `json:"exit_quantity" example:"17"`
	ExitValue     string `json:"exit_value" example:"830.50"`
}

// WeeklySeriesResponse is the weekly chart
type WeeklySeriesResponse struct {
	Points  []WeeklyPoint `json:"points"`
	Skipped int           `json:"skipped" example:"0"`
}

// ProductRow is one row of the top products table
type ProductRow struct {
	ProductID string `json:"product_id" example:"7"`
	Name      string `json:"name" example:"Parafuso M6"`
	UnitPrice string `json:"unit_price" example:"0.35"`
	Quantity  int64  `json:"quantity" example:"1200"`
	Amount    string `json:"amount" example:"420.00"`
}

// TopProductsResponse lists the most exited products
type TopProductsResponse struct {
	Products []ProductRow `json:"products"`
}

// InventorySlice is one slice of the inventory code pie
type InventorySlice struct {
	Code  string `json:"code" example:"ALM-01"`
	Count int    `json:"count" example:"12"`
	Label string `json:"label" example:"ALM-01 - 12 entradas"`
}

// InventoryCodesResponse counts entries per inventory code
type InventoryCodesResponse struct {
	InventoryCodes []InventorySlice `json:"inventory_codes"`
}

// HealthResponse reports liveness or readiness
type HealthResponse struct {
	Status  string            `json:"status" example:"ok"`
	Version string            `json:"version,omitempty" example:"0.1.0"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// EmptyResponse represents no content response (204)
type EmptyResponse struct{}

var (
	errBadRequest   = response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request")
	errNotFound     = response.New(ErrorResponse{Code: "CAPTURE_SESSION_NOT_FOUND", Message: "Capture session not found or already closed"}, "404", "Not Found")
	errConflict     = response.New(ErrorResponse{Code: "INVALID_CAPTURE_STATE", Message: "Operation not allowed in the current capture state"}, "409", "Conflict")
	errUnauthorized = response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid credentials"}, "401", "Unauthorized")
	errBackend      = response.New(ErrorResponse{Code: "BACKEND_UNAVAILABLE", Message: "Inventory backend unreachable"}, "502", "Bad Gateway")
	errInternal     = response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")
)

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Estoque Console API",
		Version:     "v1.0.0",
		Description: "Backend for the inventory console: face capture and verification, login gate and dashboard aggregates",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// Capture

		endpoint.New(
			endpoint.POST,
			"/capture/sessions",
			endpoint.WithTags("Capture"),
			endpoint.WithSummary("Open a capture session"),
			endpoint.WithDescription("Loads the detection models and starts polling the frame source. Frames come from the local camera or are pushed by the browser over the session WebSocket."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(CaptureSessionRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CaptureSessionResponse{}, "201", "Session streaming"),
			}),
			endpoint.WithErrors([]response.Response{
				errBadRequest,
				response.New(ErrorResponse{Code: "FRAME_SOURCE_BUSY", Message: "The camera is in use by another capture session"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "MODEL_LOAD_FAILED", Message: "Failed to load face recognition models"}, "503", "Service Unavailable"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/capture/sessions/{id}",
			endpoint.WithTags("Capture"),
			endpoint.WithSummary("Get a capture session"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Capture session ID"))),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CaptureSessionResponse{}, "200", "Session snapshot"),
			}),
			endpoint.WithErrors([]response.Response{errBadRequest, errNotFound}),
		),

		endpoint.New(
			endpoint.POST,
			"/capture/sessions/{id}/frames",
			endpoint.WithTags("Capture"),
			endpoint.WithSummary("Push a camera frame"),
			endpoint.WithDescription("Raw JPEG or PNG body. Use the WebSocket when possible."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("image/jpeg"), mime.MIME("image/png")}),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Capture session ID"))),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "204", "Frame accepted"),
			}),
			endpoint.WithErrors([]response.Response{
				errBadRequest,
				errNotFound,
				errConflict,
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity"),
			}),
		),

		endpoint.New(
			endpoint.POST,
			"/capture/sessions/{id}/capture",
			endpoint.WithTags("Capture"),
			endpoint.WithSummary("Take the still"),
			endpoint.WithDescription("Encodes the frame of the latest detection and releases the camera."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Capture session ID"))),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CaptureSessionResponse{}, "200", "Still captured"),
			}),
			endpoint.WithErrors([]response.Response{
				errNotFound,
				errConflict,
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected, please position yourself better"}, "422", "Unprocessable Entity"),
			}),
		),

		endpoint.New(
			endpoint.POST,
			"/capture/sessions/{id}/retake",
			endpoint.WithTags("Capture"),
			endpoint.WithSummary("Discard the still and stream again"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Capture session ID"))),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CaptureSessionResponse{}, "200", "Streaming"),
			}),
			endpoint.WithErrors([]response.Response{errNotFound, errConflict}),
		),

		endpoint.New(
			endpoint.POST,
			"/capture/sessions/{id}/restart",
			endpoint.WithTags("Capture"),
			endpoint.WithSummary("Cancel and start the session over"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Capture session ID"))),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CaptureSessionResponse{}, "200", "Streaming"),
			}),
			endpoint.WithErrors([]response.Response{errNotFound, errConflict}),
		),

		endpoint.New(
			endpoint.GET,
			"/capture/sessions/{id}/still",
			endpoint.WithTags("Capture"),
			endpoint.WithSummary("Download the captured still"),
			endpoint.WithProduce([]mime.MIME{mime.MIME("image/jpeg")}),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Capture session ID"))),
			endpoint.WithErrors([]response.Response{
				errNotFound,
				response.New(ErrorResponse{Code: "NO_STILL_IMAGE", Message: "No face image captured"}, "422", "Unprocessable Entity"),
			}),
		),

		endpoint.New(
			endpoint.POST,
			"/capture/sessions/{id}/verify",
			endpoint.WithTags("Capture"),
			endpoint.WithSummary("Verify the still against a registered user"),
			endpoint.WithDescription("Re-validates the still, posts it to the backend and applies the outcome. Failed outcomes include the result and the session next to the error."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Capture session ID"))),
			endpoint.WithBody(VerifyFaceRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(VerifyFaceResponse{}, "200", "Face verified"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "FACE_MISMATCH", Message: "Face does not match the registered user"}, "401", "Unauthorized"),
				errNotFound,
				response.New(ErrorResponse{Code: "VERIFICATION_IN_PROGRESS", Message: "A verification is already in progress for this session"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "NO_STILL_IMAGE", Message: "No face image captured"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "VERIFICATION_SERVER_ERROR", Message: "Face verification failed on the server"}, "502", "Bad Gateway"),
				response.New(ErrorResponse{Code: "VERIFICATION_UNAVAILABLE", Message: "Face verification service unreachable"}, "503", "Service Unavailable"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/capture/sessions/{id}/attempts",
			endpoint.WithTags("Capture"),
			endpoint.WithSummary("List verification attempts of a session"),
			endpoint.WithDescription("Closed sessions keep their log. Always empty when the console runs without a database."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Capture session ID"))),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AttemptsResponse{}, "200", "Attempts in creation order"),
			}),
			endpoint.WithErrors([]response.Response{errBadRequest, errUnauthorized, errInternal}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		endpoint.New(
			endpoint.DELETE,
			"/capture/sessions/{id}",
			endpoint.WithTags("Capture"),
			endpoint.WithSummary("Cancel and close a capture session"),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Capture session ID"))),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "204", "Session closed"),
			}),
			endpoint.WithErrors([]response.Response{errNotFound}),
		),

		endpoint.New(
			endpoint.GET,
			"/capture/sessions/{id}/ws",
			endpoint.WithTags("Capture"),
			endpoint.WithSummary("Session event stream"),
			endpoint.WithDescription("WebSocket. Binary messages are camera frames. The server sends detection, overlay.clear, status and notification events."),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Capture session ID"))),
			endpoint.WithErrors([]response.Response{
				errNotFound,
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "Upgrade Required"}, "426", "Upgrade Required"),
			}),
		),

		// Auth

		endpoint.New(
			endpoint.POST,
			"/auth/login",
			endpoint.WithTags("Auth"),
			endpoint.WithSummary("Log in"),
			endpoint.WithDescription("Users need a capture session verified for the same email while facial recognition is enabled. Administrators do not."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(LoginRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LoginResponse{}, "200", "Logged in"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "FACE_REQUIRED", Message: "Please verify your face before continuing"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
				errBackend,
			}),
		),

		endpoint.New(
			endpoint.POST,
			"/auth/register",
			endpoint.WithTags("Auth"),
			endpoint.WithSummary("Register a user"),
			endpoint.WithDescription("Administrator only. The face image is taken from the capture session."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithBody(RegisterUserRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "201", "User created"),
			}),
			endpoint.WithErrors([]response.Response{
				errBadRequest,
				errUnauthorized,
				response.New(ErrorResponse{Code: "FACE_REQUIRED", Message: "Please verify your face before continuing"}, "422", "Unprocessable Entity"),
				errBackend,
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// Settings

		endpoint.New(
			endpoint.GET,
			"/settings",
			endpoint.WithTags("Settings"),
			endpoint.WithSummary("Read console settings"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SettingsData{}, "200", "Settings"),
			}),
			endpoint.WithErrors([]response.Response{errInternal}),
		),

		endpoint.New(
			endpoint.PUT,
			"/settings",
			endpoint.WithTags("Settings"),
			endpoint.WithSummary("Update console settings"),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(SettingsData{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SettingsData{}, "200", "Settings saved"),
			}),
			endpoint.WithErrors([]response.Response{errBadRequest, errUnauthorized, errInternal}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// Dashboard

		endpoint.New(
			endpoint.GET,
			"/dashboard/weekly",
			endpoint.WithTags("Dashboard"),
			endpoint.WithSummary("Entries and exits per ISO week"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("direction", parameter.Query, parameter.WithDescription("in, out or both (default: both)")),
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Keep only the most recent weeks (default: all)")),
				parameter.StrParam("exclude_canceled", parameter.Query, parameter.WithDescription("true to ignore canceled transactions")),
				parameter.StrParam("refresh", parameter.Query, parameter.WithDescription("true to bypass the cache")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(WeeklySeriesResponse{}, "200", "Weekly series"),
			}),
			endpoint.WithErrors([]response.Response{errUnauthorized, errBackend}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		endpoint.New(
			endpoint.GET,
			"/dashboard/top-products",
			endpoint.WithTags("Dashboard"),
			endpoint.WithSummary("Products with the most exits"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.IntParam("n", parameter.Query, parameter.WithDescription("Number of products (default: 10, max: 100)")),
				parameter.StrParam("exclude_canceled", parameter.Query, parameter.WithDescription("true to ignore canceled transactions")),
				parameter.StrParam("refresh", parameter.Query, parameter.WithDescription("true to bypass the cache")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(TopProductsResponse{}, "200", "Ranked products"),
			}),
			endpoint.WithErrors([]response.Response{errUnauthorized, errBackend}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		endpoint.New(
			endpoint.GET,
			"/dashboard/inventory-codes",
			endpoint.WithTags("Dashboard"),
			endpoint.WithSummary("Entries per inventory code"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("exclude_canceled", parameter.Query, parameter.WithDescription("true to ignore canceled transactions")),
				parameter.StrParam("refresh", parameter.Query, parameter.WithDescription("true to bypass the cache")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(InventoryCodesResponse{}, "200", "Inventory code slices"),
			}),
			endpoint.WithErrors([]response.Response{errUnauthorized, errBackend}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
