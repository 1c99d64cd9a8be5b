// Package dashboard serves the console charts: it fetches transactions from
// the backend, caches the raw lists per caller and runs the aggregator.
package dashboard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/estoque/internal/analytics"
	"github.com/saturnino-fabrica-de-software/estoque/internal/cache"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

const keyPrefix = "dashboard:tx:"

// TransactionSource is implemented by backend.Client.
type TransactionSource interface {
	Transactions(ctx context.Context, token string, dir domain.Direction) ([]domain.Transaction, error)
}

// Query narrows the data a chart is computed from.
type Query struct {
	Direction       domain.Direction
	Limit           int
	TopN            int
	ExcludeCanceled bool
	Refresh         bool
}

type Service struct {
	source TransactionSource
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewService creates the dashboard service. A nil cache or non-positive ttl
// disables caching.
func NewService(source TransactionSource, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source: source,
		cache:  c,
		ttl:    ttl,
		logger: logger.With("component", "dashboard"),
	}
}

// Weekly returns entries and exits bucketed by ISO week.
func (s *Service) Weekly(ctx context.Context, token string, q Query) (analytics.WeeklySeries, error) {
	dir := q.Direction
	if dir == "" {
		dir = domain.DirectionBoth
	}
	txns, err := s.transactions(ctx, token, dir, q)
	if err != nil {
		return analytics.WeeklySeries{}, err
	}
	buckets, skipped := analytics.BucketByWeek(txns, dir, q.Limit)
	if skipped > 0 {
		s.logger.WarnContext(ctx, "transactions with unparsable dates skipped", slog.Int("count", skipped))
	}
	return analytics.PresentWeekly(buckets, skipped), nil
}

// TopProducts ranks products by exited quantity.
func (s *Service) TopProducts(ctx context.Context, token string, q Query) ([]analytics.ProductRow, error) {
	txns, err := s.transactions(ctx, token, domain.DirectionOut, q)
	if err != nil {
		return nil, err
	}
	return analytics.PresentProducts(analytics.RankProducts(txns, q.TopN)), nil
}

// InventoryCodes counts receivements per inventory code.
func (s *Service) InventoryCodes(ctx context.Context, token string, q Query) ([]analytics.InventorySlice, error) {
	txns, err := s.transactions(ctx, token, domain.DirectionIn, q)
	if err != nil {
		return nil, err
	}
	return analytics.PresentInventoryCodes(analytics.CountByInventoryCode(txns)), nil
}

// Invalidate drops every cached list of the caller.
func (s *Service) Invalidate(ctx context.Context, token string) error {
	if s.cache == nil {
		return nil
	}
	_, err := s.cache.DeletePrefix(ctx, keyPrefix+fingerprint(token)+":")
	return err
}

func (s *Service) transactions(ctx context.Context, token string, dir domain.Direction, q Query) ([]domain.Transaction, error) {
	txns, err := s.load(ctx, token, dir, q.Refresh)
	if err != nil {
		return nil, err
	}
	if q.ExcludeCanceled {
		txns = analytics.WithoutStatus(txns, domain.TransactionCanceled)
	}
	return txns, nil
}

func (s *Service) load(ctx context.Context, token string, dir domain.Direction, refresh bool) ([]domain.Transaction, error) {
	if s.cache == nil || s.ttl <= 0 {
		return s.source.Transactions(ctx, token, dir)
	}

	key := keyPrefix + fingerprint(token) + ":" + string(dir)
	if !refresh {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var txns []domain.Transaction
			if err := json.Unmarshal(data, &txns); err == nil {
				return txns, nil
			}
			s.logger.WarnContext(ctx, "discarding undecodable cache entry", slog.String("key", key))
		} else if !cache.IsMiss(err) {
			s.logger.WarnContext(ctx, "cache read failed", slog.String("error", err.Error()))
		}
	}

	txns, err := s.source.Transactions(ctx, token, dir)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(txns); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "cache write failed", slog.String("error", err.Error()))
		}
	}
	return txns, nil
}

// fingerprint keys the cache by caller without storing the token itself.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
