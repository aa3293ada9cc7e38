package idempotency

import (
	"context"
	"time"

	"github.com/marcelogudines/sales/pkg/logging"
)

// Cleaner is implemented by stores holding expiring entries
type Cleaner interface {
	Clean(ctx context.Context, before time.Time) (int, error)
}

// RunCleanup removes expired entries from every store each interval until ctx ends
func RunCleanup(ctx context.Context, interval time.Duration, logger *logging.Logger, stores ...Cleaner) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, store := range stores {
				removed, err := store.Clean(ctx, now)
				if err != nil {
					logger.WithError(err).Warn("Idempotency cleanup failed")
					continue
				}
				if removed > 0 {
					logger.Debug("Expired idempotency entries removed", "count", removed)
				}
			}
		}
	}
}
