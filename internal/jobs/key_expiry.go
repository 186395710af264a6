package jobs

import (
	"context"
	"log"
	"time"

	"worktrack/server/internal/config"
	"worktrack/server/internal/repository"
)

// StartKeyExpiryJob periodically retires secret keys whose expiry has passed,
// so stale keys also drop out of active-key lookups between requests.
func StartKeyExpiryJob(ctx context.Context, cfg config.Config, store *repository.Store) {
	if !cfg.KeySweepEnabled {
		return
	}
	interval := cfg.KeySweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				count, err := store.DeactivateExpiredKeys(tickCtx, time.Now().UTC())
				cancel()
				if err != nil {
					log.Printf("key expiry sweep error: %v", err)
					continue
				}
				if count > 0 {
					log.Printf("key expiry sweep deactivated %d keys", count)
				}
			}
		}
	}()
}
