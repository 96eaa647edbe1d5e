package idempotency

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweep deletes expired records every interval until ctx is cancelled.
func Sweep(ctx context.Context, store Store, interval time.Duration, limit int, logger *zap.Logger) {
	if store == nil || interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.CleanupExpired(ctx, now, limit)
			if err != nil {
				logger.Warn("idempotency sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Debug("idempotency sweep", zap.Int("removed", removed))
			}
		}
	}
}
