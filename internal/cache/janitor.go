package cache

import (
	"context"
	"log/slog"
	"time"
)

// RunJanitor removes expired entries every interval until ctx is done.
func RunJanitor(ctx context.Context, c Cache, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	logger = logger.With("component", "cache_janitor")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.CleanupExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("failed to clean up cache", slog.String("error", err.Error()))
				}
				continue
			}
			if n > 0 {
				logger.Debug("expired cache entries removed", slog.Int64("count", n))
			}
		}
	}
}
