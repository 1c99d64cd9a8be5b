package api

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/estoque/internal/analytics"
	"github.com/saturnino-fabrica-de-software/estoque/internal/capture"
	"github.com/saturnino-fabrica-de-software/estoque/internal/dashboard"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
	"github.com/saturnino-fabrica-de-software/estoque/internal/flow"
	facemock "github.com/saturnino-fabrica-de-software/estoque/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/estoque/internal/repository"
	"github.com/saturnino-fabrica-de-software/estoque/internal/ws"
)

type stubFlow struct{}

func (stubFlow) Verify(context.Context, uuid.UUID, string) (flow.VerifyResult, error) {
	return flow.VerifyResult{}, domain.ErrNoStillImage
}

func (stubFlow) Login(context.Context, flow.LoginRequest) (string, error) {
	return "tok", nil
}

func (stubFlow) Register(context.Context, string, flow.RegisterRequest) error {
	return nil
}

type stubDashboard struct{}

func (stubDashboard) Weekly(context.Context, string, dashboard.Query) (analytics.WeeklySeries, error) {
	return analytics.WeeklySeries{Points: []analytics.WeeklyPoint{}}, nil
}

func (stubDashboard) TopProducts(context.Context, string, dashboard.Query) ([]analytics.ProductRow, error) {
	return []analytics.ProductRow{}, nil
}

func (stubDashboard) InventoryCodes(context.Context, string, dashboard.Query) ([]analytics.InventorySlice, error) {
	return []analytics.InventorySlice{}, nil
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := ws.NewHub()

	registry := capture.NewRegistry(capture.DefaultConfig(), capture.Deps{
		Detector: facemock.New(),
		Overlay:  hub,
		Notifier: hub,
		Clock:    clockwork.NewFakeClock(),
		Logger:   logger,
	}, nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	go registry.Run(ctx)

	r := NewRouter(logger, &Dependencies{
		Sessions:      registry,
		Flow:          stubFlow{},
		Dashboard:     stubDashboard{},
		Settings:      repository.NewMemorySettings(domain.Settings{FacialRecognition: true}),
		Attempts:      repository.DiscardAttempts{},
		Hub:           hub,
		TokenExpired:  func(token string, _ time.Time) bool { return token == "expired" },
		AuthRateLimit: 3,
	})
	r.Setup()

	t.Cleanup(func() {
		_ = r.Shutdown()
		cancel()
	})
	return r
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		token          string
		expectedStatus int
	}{
		{"health", "GET", "/health", "", "", 200},
		{"ready", "GET", "/ready", "", "", 200},
		{"settings are public", "GET", "/v1/settings", "", "", 200},
		{"settings update needs a token", "PUT", "/v1/settings", `{"facial_recognition":false}`, "", 401},
		{"settings update", "PUT", "/v1/settings", `{"facial_recognition":false}`, "tok", 200},
		{"dashboard needs a token", "GET", "/v1/dashboard/weekly", "", "", 401},
		{"dashboard rejects expired token", "GET", "/v1/dashboard/weekly", "", "expired", 401},
		{"dashboard", "GET", "/v1/dashboard/top-products", "", "tok", 200},
		{"login", "POST", "/v1/auth/login", `{"email":"a@b.c","password":"x"}`, "", 200},
		{"register needs a token", "POST", "/v1/auth/register", `{"username":"a"}`, "", 401},
		{"unknown session", "GET", "/v1/capture/sessions/" + uuid.NewString(), "", "", 404},
		{"websocket needs upgrade", "GET", "/v1/capture/sessions/" + uuid.NewString() + "/ws", "", "", 426},
		{"attempts need a token", "GET", "/v1/capture/sessions/" + uuid.NewString() + "/attempts", "", "", 401},
		{"attempts of a closed session", "GET", "/v1/capture/sessions/" + uuid.NewString() + "/attempts", "", "tok", 200},
		{"verify without still", "POST", "/v1/capture/sessions/" + uuid.NewString() + "/verify", "", "", 422},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
			}
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			resp, err := r.App().Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestRouter_CaptureSessionLifecycle(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest("POST", "/v1/capture/sessions", strings.NewReader(`{"purpose":"register"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := r.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, 1, r.deps.Sessions.Len())
}

func TestRouter_AuthRateLimit(t *testing.T) {
	r := newTestRouter(t)

	login := func() int {
		req := httptest.NewRequest("POST", "/v1/auth/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		resp, err := r.App().Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, login())
	}
	assert.Equal(t, 429, login())
}

func TestRouter_WithoutDependencies(t *testing.T) {
	r := NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	r.Setup()

	resp, err := r.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = r.App().Test(httptest.NewRequest("GET", "/v1/settings", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}
