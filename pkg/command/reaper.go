package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trydirect/stacker/internal/telemetry"
)

// RunReaperLoop periodically marks sent/running commands whose
// timeout_seconds has elapsed as timed_out (§4.5 edge-case policy:
// "a reaper runs every T_reap seconds").
func RunReaperLoop(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, interval time.Duration) {
	logger.Info("command reaper loop started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reap := func() {
		store := NewStore(pool)
		n, err := store.MarkTimedOut(ctx)
		if err != nil {
			logger.Error("marking commands timed out", "error", err)
			return
		}
		for i := int64(0); i < n; i++ {
			telemetry.CommandsTimedOutTotal.Inc()
		}
		if n > 0 {
			logger.Info("commands timed out", "count", n)
		}
	}

	reap()

	for {
		select {
		case <-ctx.Done():
			logger.Info("command reaper loop stopped")
			return
		case <-ticker.C:
			reap()
		}
	}
}
