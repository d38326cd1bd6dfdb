// Package dispatch implements the long-poll dispatcher (§4.6): the
// cooperative wait loop an agent's "give me the next command" call runs
// through, releasing its database connection between probes so a small
// pool can serve far more concurrent waiters than its size.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trydirect/stacker/internal/audit"
	"github.com/trydirect/stacker/internal/db"
	"github.com/trydirect/stacker/internal/telemetry"
	"github.com/trydirect/stacker/pkg/command"
)

// HeartbeatRecorder updates an agent's liveness status. Satisfied by
// pkg/agent.Service, which owns the heartbeat-failure propagation policy;
// declared narrowly here to avoid a dependency on the rest of that package.
type HeartbeatRecorder interface {
	Heartbeat(ctx context.Context, agentID uuid.UUID, status string) error
}

// Dispatcher runs the §4.6 wait loop for authenticated agents.
type Dispatcher struct {
	pool      db.Pool
	heartbeat HeartbeatRecorder
	auditLog  *audit.Writer
	logger    *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool db.Pool, heartbeat HeartbeatRecorder, auditLog *audit.Writer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{pool: pool, heartbeat: heartbeat, auditLog: auditLog, logger: logger}
}

// Wait implements the §4.6 procedure verbatim: heartbeat and audit in their
// own short transactions, then loop short dequeue probes separated by a
// sleep that holds no database resource, until budget elapses or a command
// is claimed.
func (d *Dispatcher) Wait(ctx context.Context, deploymentHash string, agentID uuid.UUID, budget, probeInterval time.Duration) (*command.Command, error) {
	start := time.Now()
	telemetry.DispatchOutstandingWaiters.Inc()
	defer telemetry.DispatchOutstandingWaiters.Dec()

	// 1. heartbeat(a, online) — one short-lived DB txn. A failed heartbeat
	// never fails the poll; the agent's next poll retries it.
	if err := d.heartbeat.Heartbeat(ctx, agentID, "online"); err != nil {
		d.logger.Warn("heartbeat update failed, continuing poll", "error", err, "agent_id", agentID)
	}

	// 2. audit(a, dh, "command_polled") — one short-lived DB txn (the audit
	// writer's own buffered async flush, never blocking this call).
	d.auditLog.Write(ctx, audit.Entry{Actor: agentID.String(), DeploymentHash: deploymentHash, Action: "command.polled", Outcome: "success"})

	deadline := time.Now().Add(budget)

	for {
		select {
		case <-ctx.Done():
			// Transport disconnected; abort at this probe boundary. No
			// command has been dequeued (dequeue only returns one after
			// also marking it sent, atomically).
			telemetry.DispatchWaitDuration.WithLabelValues("cancelled").Observe(time.Since(start).Seconds())
			return nil, ctx.Err()
		default:
		}

		cmd, err := d.probe(ctx, deploymentHash)
		if err != nil {
			return nil, err
		}
		if cmd != nil {
			telemetry.DispatchWaitDuration.WithLabelValues("command").Observe(time.Since(start).Seconds())
			telemetry.CommandsDequeuedTotal.WithLabelValues(cmd.CommandType).Inc()
			return cmd, nil
		}

		if time.Now().Add(probeInterval).After(deadline) {
			telemetry.DispatchWaitDuration.WithLabelValues("empty").Observe(time.Since(start).Seconds())
			return nil, nil
		}

		select {
		case <-ctx.Done():
			telemetry.DispatchWaitDuration.WithLabelValues("cancelled").Observe(time.Since(start).Seconds())
			return nil, ctx.Err()
		case <-time.After(probeInterval):
		}
	}
}

// probe runs exactly one short-lived dequeue transaction and releases its
// connection before returning, whether or not a command was found.
func (d *Dispatcher) probe(ctx context.Context, deploymentHash string) (*command.Command, error) {
	var cmd *command.Command
	err := db.WithTx(ctx, d.pool, func(tx pgx.Tx) error {
		store := command.NewStore(tx)
		var err error
		cmd, err = store.Dequeue(ctx, deploymentHash)
		return err
	})
	return cmd, err
}
