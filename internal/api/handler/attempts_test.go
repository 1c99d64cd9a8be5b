package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/estoque/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
	"github.com/saturnino-fabrica-de-software/estoque/internal/repository"
)

type stubAttempts struct {
	attempts []domain.VerificationAttempt
	err      error
	asked    uuid.UUID
}

func (s *stubAttempts) ListBySession(_ context.Context, id uuid.UUID) ([]domain.VerificationAttempt, error) {
	s.asked = id
	return s.attempts, s.err
}

func newAttemptsApp(attempts AttemptLister) *fiber.App {
	h := NewAttemptsHandler(attempts, discardLogger())
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(discardLogger())})
	app.Get("/v1/capture/sessions/:id/attempts", h.List)
	return app
}

func TestAttemptsHandler_List(t *testing.T) {
	id := uuid.New()
	store := &stubAttempts{attempts: []domain.VerificationAttempt{
		{ID: uuid.New(), SessionID: id, Identity: "ana@estoque.dev", Outcome: domain.OutcomeNotMatched, LatencyMs: 120},
		{ID: uuid.New(), SessionID: id, Identity: "ana@estoque.dev", Outcome: domain.OutcomeVerified, LatencyMs: 95},
	}}

	resp, err := newAttemptsApp(store).Test(httptest.NewRequest("GET", "/v1/capture/sessions/"+id.String()+"/attempts", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, id, store.asked)

	var body AttemptsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, id, body.SessionID)
	require.Len(t, body.Attempts, 2)
	assert.Equal(t, domain.OutcomeVerified, body.Attempts[1].Outcome)
}

func TestAttemptsHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		store      AttemptLister
		wantStatus int
	}{
		{
			name:       "invalid session id",
			path:       "/v1/capture/sessions/nope/attempts",
			store:      repository.DiscardAttempts{},
			wantStatus: 400,
		},
		{
			name:       "store failure",
			path:       "/v1/capture/sessions/" + uuid.NewString() + "/attempts",
			store:      &stubAttempts{err: errors.New("db down")},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := newAttemptsApp(tt.store).Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestAttemptsHandler_EmptyLogIsArray(t *testing.T) {
	resp, err := newAttemptsApp(repository.DiscardAttempts{}).
		Test(httptest.NewRequest("GET", "/v1/capture/sessions/"+uuid.NewString()+"/attempts", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.JSONEq(t, `[]`, string(body["attempts"]))
}
