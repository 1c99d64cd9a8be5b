package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

// DB interface for database operations
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// RateLimiter counts hits per key in fixed windows stored in Postgres, so the
// limit holds across restarts and replicas.
type RateLimiter struct {
	db     DB
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(db DB, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RateLimiter{
		db:     db,
		window: window,
		now:    time.Now,
	}
}

// VerifyKey is the counter key for face verification attempts of one identity.
func VerifyKey(identity string) string {
	return "verify:" + strings.ToLower(strings.TrimSpace(identity))
}

// Check records a hit for key and fails with ErrRateLimitExceeded once more
// than limit hits fall in the current window. A non-positive limit disables it.
func (r *RateLimiter) Check(ctx context.Context, key string, limit int) error {
	if limit <= 0 {
		return nil
	}

	now := r.now()

	// Atomically increment, or start a new window when the stored one ended
	query := `
		INSERT INTO rate_limit_counters (key, count, window_start, window_end)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET
			count = CASE
				WHEN rate_limit_counters.window_end <= $2 THEN 1
				ELSE rate_limit_counters.count + 1
			END,
			window_start = CASE
				WHEN rate_limit_counters.window_end <= $2 THEN $2
				ELSE rate_limit_counters.window_start
			END,
			window_end = CASE
				WHEN rate_limit_counters.window_end <= $2 THEN $3
				ELSE rate_limit_counters.window_end
			END
		RETURNING count
	`

	var count int
	err := r.db.QueryRow(ctx, query, key, now, now.Add(r.window)).Scan(&count)
	if err != nil {
		return fmt.Errorf("check rate limit: %w", err)
	}

	if count > limit {
		return domain.ErrRateLimitExceeded.WithError(
			fmt.Errorf("%d/%d attempts in %s", count, limit, r.window))
	}

	return nil
}

// CleanupExpired removes counters whose window ended over an hour ago
func (r *RateLimiter) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM rate_limit_counters WHERE window_end < $1`
	result, err := r.db.Exec(ctx, query, r.now().Add(-time.Hour))
	if err != nil {
		return 0, fmt.Errorf("cleanup rate limits: %w", err)
	}
	return result.RowsAffected(), nil
}

// Count returns the hits of key in the current window.
func (r *RateLimiter) Count(ctx context.Context, key string) (int, error) {
	query := `
		SELECT count
		FROM rate_limit_counters
		WHERE key = $1 AND window_end > $2
	`

	var count int
	err := r.db.QueryRow(ctx, query, key, r.now()).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count rate limit: %w", err)
	}

	return count, nil
}

// Reset clears the counter of key, e.g. after a successful verification.
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	query := `DELETE FROM rate_limit_counters WHERE key = $1`
	if _, err := r.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}

// RunCleanup deletes expired counters every interval until ctx is done.
func (r *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.CleanupExpired(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
