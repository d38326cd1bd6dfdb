package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trydirect/stacker/internal/telemetry"
)

// RunSweeperLoop periodically demotes agents that stop heartbeating: stale
// at 3x heartbeatInterval, offline at 10x (§4.4).
func RunSweeperLoop(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, heartbeatInterval time.Duration) {
	staleAfter := 3 * heartbeatInterval
	offlineAfter := 10 * heartbeatInterval

	logger.Info("agent sweeper loop started", "heartbeat_interval", heartbeatInterval)
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	sweep := func() {
		store := NewStore(pool)

		if _, err := store.MarkStale(ctx, staleAfter, offlineAfter); err != nil {
			logger.Error("marking agents stale", "error", err)
		}

		n, err := store.MarkOffline(ctx, offlineAfter)
		if err != nil {
			logger.Error("marking agents offline", "error", err)
			return
		}
		for i := int64(0); i < n; i++ {
			telemetry.AgentsOfflineTotal.Inc()
		}
	}

	sweep()

	for {
		select {
		case <-ctx.Done():
			logger.Info("agent sweeper loop stopped")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
