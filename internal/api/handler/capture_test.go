package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/estoque/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/estoque/internal/capture"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
	"github.com/saturnino-fabrica-de-software/estoque/internal/flow"
	facemock "github.com/saturnino-fabrica-de-software/estoque/internal/provider/mock"
)

type MockFaceVerifier struct {
	mock.Mock
}

func (m *MockFaceVerifier) Verify(ctx context.Context, sessionID uuid.UUID, identity string) (flow.VerifyResult, error) {
	args := m.Called(ctx, sessionID, identity)
	return args.Get(0).(flow.VerifyResult), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captureFixture struct {
	app      *fiber.App
	registry *capture.Registry
	clock    clockwork.FakeClock
	verifier *MockFaceVerifier
}

func newCaptureFixture(t *testing.T) *captureFixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	registry := capture.NewRegistry(capture.DefaultConfig(), capture.Deps{
		Detector: facemock.New(),
		Clock:    clock,
		Logger:   discardLogger(),
	}, nil, 10*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		registry.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	verifier := &MockFaceVerifier{}
	h := NewCaptureHandler(registry, verifier, discardLogger())

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(discardLogger())})
	g := app.Group("/v1/capture/sessions")
	g.Post("/", h.Create)
	g.Get("/:id", h.Get)
	g.Post("/:id/frames", h.PushFrame)
	g.Post("/:id/capture", h.Capture)
	g.Post("/:id/retake", h.Retake)
	g.Post("/:id/restart", h.Restart)
	g.Get("/:id/still", h.Still)
	g.Post("/:id/verify", h.Verify)
	g.Delete("/:id", h.Delete)

	return &captureFixture{app: app, registry: registry, clock: clock, verifier: verifier}
}

func (f *captureFixture) do(t *testing.T, method, path string, body []byte, contentType string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (f *captureFixture) create(t *testing.T) domain.CaptureSession {
	t.Helper()
	resp := f.do(t, "POST", "/v1/capture/sessions", []byte(`{"purpose":"login","identity":"ana@estoque.dev"}`), fiber.MIMEApplicationJSON)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return decodeSession(t, resp)
}

// detect pushes a frame and runs the poll loop until a face is seen.
func (f *captureFixture) detect(t *testing.T, id uuid.UUID) {
	t.Helper()
	resp := f.do(t, "POST", "/v1/capture/sessions/"+id.String()+"/frames", pngFrame(t), "image/png")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	ctrl, err := f.registry.Get(id)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		f.clock.Advance(capture.DefaultPollInterval)
		return ctrl.Status() == domain.StatusFaceDetected
	}, 2*time.Second, 10*time.Millisecond)
}

func decodeSession(t *testing.T, resp *http.Response) domain.CaptureSession {
	t.Helper()
	var s domain.CaptureSession
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	return s
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Code
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCaptureHandler_Create(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedCode   string
		purpose        domain.CapturePurpose
	}{
		{
			name:           "login session",
			body:           `{"purpose":"login","identity":"ana@estoque.dev"}`,
			expectedStatus: 201,
			purpose:        domain.PurposeLogin,
		},
		{
			name:           "register session",
			body:           `{"purpose":"register"}`,
			expectedStatus: 201,
			purpose:        domain.PurposeRegister,
		},
		{
			name:           "empty body defaults to login",
			body:           ``,
			expectedStatus: 201,
			purpose:        domain.PurposeLogin,
		},
		{
			name:           "unknown purpose",
			body:           `{"purpose":"checkout"}`,
			expectedStatus: 422,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name:           "malformed body",
			body:           `{"purpose":`,
			expectedStatus: 400,
			expectedCode:   "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCaptureFixture(t)

			resp := f.do(t, "POST", "/v1/capture/sessions", []byte(tt.body), fiber.MIMEApplicationJSON)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, resp))
				assert.Zero(t, f.registry.Len())
				return
			}

			s := decodeSession(t, resp)
			assert.NotEqual(t, uuid.Nil, s.ID)
			assert.Equal(t, tt.purpose, s.Purpose)
			assert.Equal(t, domain.StatusStreaming, s.Status)
			assert.Equal(t, 1, f.registry.Len())
		})
	}
}

func TestCaptureHandler_Get(t *testing.T) {
	f := newCaptureFixture(t)
	s := f.create(t)

	resp := f.do(t, "GET", "/v1/capture/sessions/"+s.ID.String(), nil, "")
	require.Equal(t, 200, resp.StatusCode)
	got := decodeSession(t, resp)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "ana@estoque.dev", got.ClaimedIdentity)

	resp = f.do(t, "GET", "/v1/capture/sessions/"+uuid.NewString(), nil, "")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "CAPTURE_SESSION_NOT_FOUND", errorCode(t, resp))

	resp = f.do(t, "GET", "/v1/capture/sessions/not-a-uuid", nil, "")
	assert.Equal(t, 400, resp.StatusCode)
}

func TestCaptureHandler_PushFrame(t *testing.T) {
	f := newCaptureFixture(t)
	s := f.create(t)
	path := "/v1/capture/sessions/" + s.ID.String() + "/frames"

	resp := f.do(t, "POST", path, pngFrame(t), "image/png")
	assert.Equal(t, 204, resp.StatusCode)

	resp = f.do(t, "POST", path, nil, "image/png")
	assert.Equal(t, 400, resp.StatusCode)

	resp = f.do(t, "POST", path, []byte("not an image"), "image/jpeg")
	assert.Equal(t, 422, resp.StatusCode)
	assert.Equal(t, "INVALID_IMAGE", errorCode(t, resp))
}

func TestCaptureHandler_CaptureWithoutFace(t *testing.T) {
	f := newCaptureFixture(t)
	s := f.create(t)

	resp := f.do(t, "POST", "/v1/capture/sessions/"+s.ID.String()+"/capture", nil, "")
	assert.Equal(t, 422, resp.StatusCode)
	assert.Equal(t, "NO_FACE_DETECTED", errorCode(t, resp))

	ctrl, err := f.registry.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStreaming, ctrl.Status())
}

func TestCaptureHandler_CaptureStillRetake(t *testing.T) {
	f := newCaptureFixture(t)
	s := f.create(t)
	base := "/v1/capture/sessions/" + s.ID.String()

	f.detect(t, s.ID)

	resp := f.do(t, "POST", base+"/capture", nil, "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, domain.StatusCaptured, decodeSession(t, resp).Status)

	resp = f.do(t, "GET", base+"/still", nil, "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	still, _ := io.ReadAll(resp.Body)
	assert.True(t, bytes.HasPrefix(still, []byte{0xFF, 0xD8}), "expected a JPEG")

	// frames are refused once the camera is released
	resp = f.do(t, "POST", base+"/frames", pngFrame(t), "image/png")
	assert.Equal(t, 409, resp.StatusCode)

	resp = f.do(t, "POST", base+"/retake", nil, "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, domain.StatusStreaming, decodeSession(t, resp).Status)

	resp = f.do(t, "GET", base+"/still", nil, "")
	assert.Equal(t, 422, resp.StatusCode)
	assert.Equal(t, "NO_STILL_IMAGE", errorCode(t, resp))

	resp = f.do(t, "POST", base+"/retake", nil, "")
	assert.Equal(t, 409, resp.StatusCode)
}

func TestCaptureHandler_Restart(t *testing.T) {
	f := newCaptureFixture(t)
	s := f.create(t)

	resp := f.do(t, "POST", "/v1/capture/sessions/"+s.ID.String()+"/restart", nil, "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, domain.StatusStreaming, decodeSession(t, resp).Status)
}

func TestCaptureHandler_Verify(t *testing.T) {
	t.Run("verified", func(t *testing.T) {
		f := newCaptureFixture(t)
		id := uuid.New()
		f.verifier.On("Verify", mock.Anything, id, "ana@estoque.dev").Return(flow.VerifyResult{
			Result:  domain.Verified(),
			Session: domain.CaptureSession{ID: id, Status: domain.StatusVerified, VerifiedAs: "ana@estoque.dev"},
		}, nil)

		resp := f.do(t, "POST", "/v1/capture/sessions/"+id.String()+"/verify", []byte(`{"identity":"ana@estoque.dev"}`), fiber.MIMEApplicationJSON)
		require.Equal(t, 200, resp.StatusCode)

		var out flow.VerifyResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.True(t, out.Result.Ok())
		assert.Equal(t, domain.StatusVerified, out.Session.Status)
		f.verifier.AssertExpectations(t)
	})

	t.Run("mismatch carries the session", func(t *testing.T) {
		f := newCaptureFixture(t)
		id := uuid.New()
		result := domain.NotMatched("face does not match the registered user")
		f.verifier.On("Verify", mock.Anything, id, "").Return(flow.VerifyResult{
			Result:  result,
			Session: domain.CaptureSession{ID: id, Status: domain.StatusStreaming},
		}, result.Err())

		resp := f.do(t, "POST", "/v1/capture/sessions/"+id.String()+"/verify", nil, "")
		require.Equal(t, 401, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), `"code":"FACE_MISMATCH"`)
		assert.Contains(t, string(body), `"outcome":"not_matched"`)
		assert.Contains(t, string(body), `"status":"streaming"`)
	})

	t.Run("error before verification", func(t *testing.T) {
		f := newCaptureFixture(t)
		id := uuid.New()
		f.verifier.On("Verify", mock.Anything, id, "").Return(flow.VerifyResult{}, domain.ErrNoStillImage)

		resp := f.do(t, "POST", "/v1/capture/sessions/"+id.String()+"/verify", nil, "")
		assert.Equal(t, 422, resp.StatusCode)
		assert.Equal(t, "NO_STILL_IMAGE", errorCode(t, resp))
	})
}

func TestCaptureHandler_Delete(t *testing.T) {
	f := newCaptureFixture(t)
	s := f.create(t)
	path := "/v1/capture/sessions/" + s.ID.String()

	resp := f.do(t, "DELETE", path, nil, "")
	assert.Equal(t, 204, resp.StatusCode)
	assert.Zero(t, f.registry.Len())

	resp = f.do(t, "GET", path, nil, "")
	assert.Equal(t, 404, resp.StatusCode)

	resp = f.do(t, "DELETE", path, nil, "")
	assert.Equal(t, 404, resp.StatusCode)
}

func TestCaptureHandler_ModelLoadFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry := capture.NewRegistry(capture.DefaultConfig(), capture.Deps{
		Detector: facemock.New().FailLoad(assert.AnError),
		Clock:    clock,
		Logger:   discardLogger(),
	}, nil, time.Minute)

	h := NewCaptureHandler(registry, &MockFaceVerifier{}, discardLogger())
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(discardLogger())})
	app.Post("/v1/capture/sessions", h.Create)

	req := httptest.NewRequest("POST", "/v1/capture/sessions", strings.NewReader(`{"purpose":"login"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, "MODEL_LOAD_FAILED", errorCode(t, resp))
	assert.Zero(t, registry.Len(), "failed session is not kept")
}
