package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

type AttemptRepository struct {
	pool PgxPool
}

func NewAttemptRepository(pool PgxPool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) Create(ctx context.Context, a *domain.VerificationAttempt) error {
	query := `
		INSERT INTO verification_attempts (id, session_id, identity, outcome, reason, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		a.ID,
		a.SessionID,
		a.Identity,
		string(a.Outcome),
		a.Reason,
		a.LatencyMs,
	).Scan(&a.CreatedAt)

	if err != nil {
		return fmt.Errorf("create verification attempt: %w", err)
	}

	return nil
}

func (r *AttemptRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.VerificationAttempt, error) {
	query := `
		SELECT id, session_id, identity, outcome, reason, latency_ms, created_at
		FROM verification_attempts
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list verification attempts: %w", err)
	}
	defer rows.Close()

	attempts := []domain.VerificationAttempt{}
	for rows.Next() {
		var a domain.VerificationAttempt
		var outcome string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Identity, &outcome, &a.Reason, &a.LatencyMs, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan verification attempt: %w", err)
		}
		a.Outcome = domain.VerificationOutcome(outcome)
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification attempts: %w", err)
	}

	return attempts, nil
}

// DiscardAttempts drops attempts when no database is configured.
type DiscardAttempts struct{}

func (DiscardAttempts) Create(context.Context, *domain.VerificationAttempt) error { return nil }

func (DiscardAttempts) ListBySession(context.Context, uuid.UUID) ([]domain.VerificationAttempt, error) {
	return []domain.VerificationAttempt{}, nil
}

var (
	_ AttemptRepositoryInterface = (*AttemptRepository)(nil)
	_ AttemptRepositoryInterface = DiscardAttempts{}
)
