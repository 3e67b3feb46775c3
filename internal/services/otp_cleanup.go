package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/AnshRaj112/tasknest-backend/internal/metrics"
)

// StartOTPCleanup clears expired verification and reset codes every interval
// until ctx is cancelled. It runs once immediately.
func StartOTPCleanup(ctx context.Context, store UserStore, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sweepExpiredOTPs(ctx, store)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepExpiredOTPs(ctx, store)
			}
		}
	}()
}

func sweepExpiredOTPs(ctx context.Context, store UserStore) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cleared, err := store.ClearExpiredOTPs(sweepCtx, time.Now().UTC())
	if err != nil {
		slog.Error("otp cleanup failed", "error", err)
		return
	}
	if cleared > 0 {
		metrics.OTPSwept.Add(float64(cleared))
		slog.Debug("cleared expired otp codes", "count", cleared)
	}
}
