package command

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trydirect/stacker/internal/apperr"
	"github.com/trydirect/stacker/internal/audit"
	"github.com/trydirect/stacker/internal/db"
	"github.com/trydirect/stacker/internal/telemetry"
)

// DeploymentOwnership is satisfied by pkg/deployment; it lets the command
// service verify a caller owns the target deployment without importing the
// deployment package directly.
type DeploymentOwnership interface {
	IsOwner(ctx context.Context, deploymentHash, userID string) (bool, error)
}

// AgentBinding is satisfied by pkg/agent; it lets the command service check
// which agent is bound to a deployment before accepting a result report.
type AgentBinding interface {
	DeploymentHashForAgent(ctx context.Context, agentID uuid.UUID) (string, error)
}

// Service implements the public enqueue/list/cancel/report_result
// operations of §4.5.
type Service struct {
	pool        db.Pool
	deployments DeploymentOwnership
	agents      AgentBinding
	auditLog    *audit.Writer
	logger      *slog.Logger
}

// NewService constructs a command Service.
func NewService(pool db.Pool, deployments DeploymentOwnership, agents AgentBinding, auditLog *audit.Writer, logger *slog.Logger) *Service {
	return &Service{pool: pool, deployments: deployments, agents: agents, auditLog: auditLog, logger: logger}
}

// Enqueue verifies deployment ownership, then inserts the command and its
// queue projection in one transaction (§4.5 steps 1-3).
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest, userID string) (Command, error) {
	owned, err := s.deployments.IsOwner(ctx, req.DeploymentHash, userID)
	if err != nil {
		return Command{}, apperr.DependencyUnavailable("checking deployment ownership", err)
	}
	if !owned {
		return Command{}, apperr.Forbidden("caller does not own this deployment")
	}

	var cmd Command
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := NewStore(tx)
		var err error
		cmd, err = store.Enqueue(ctx, req, userID)
		return err
	})
	if err != nil {
		return Command{}, apperr.Internal("enqueuing command", err)
	}

	telemetry.CommandsEnqueuedTotal.WithLabelValues(req.CommandType).Inc()
	s.auditLog.Write(ctx, audit.Entry{
		Actor:          userID,
		DeploymentHash: req.DeploymentHash,
		Action:         "command.enqueued",
		Outcome:        "success",
	})

	return cmd, nil
}

// ListForDeployment returns commands for a deployment, optionally filtered by status.
func (s *Service) ListForDeployment(ctx context.Context, deploymentHash string, status *Status) ([]Command, error) {
	store := NewStore(s.pool)
	cmds, err := store.ListForDeployment(ctx, deploymentHash, status)
	if err != nil {
		return nil, apperr.Internal("listing commands", err)
	}
	return cmds, nil
}

// Cancel cancels a pending or sent command (§4.5 edge-case policy).
func (s *Service) Cancel(ctx context.Context, commandID uuid.UUID, userID string) error {
	var ok bool
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := NewStore(tx)
		var err error
		ok, err = store.Cancel(ctx, commandID)
		return err
	})
	if db.IsNoRows(err) {
		return apperr.NotFound("command not found")
	}
	if err != nil {
		return apperr.Internal("cancelling command", err)
	}
	if !ok {
		return apperr.Conflict("command is no longer cancellable")
	}

	s.auditLog.Write(ctx, audit.Entry{Actor: userID, Action: "command.cancelled", Outcome: "success"})
	return nil
}

// ReportResult applies an agent's outcome report, enforcing that only the
// agent bound to the command's deployment may report, and that the
// transition obeys the status DAG (§4.5, last paragraph).
func (s *Service) ReportResult(ctx context.Context, agentID uuid.UUID, req ReportResultRequest) error {
	boundDH, err := s.agents.DeploymentHashForAgent(ctx, agentID)
	if err != nil {
		return apperr.Unauthorized("unknown agent")
	}

	var applied bool
	var cmdDH string
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := NewStore(tx)
		cmd, err := store.GetByCommandID(ctx, req.CommandID)
		if err != nil {
			return err
		}
		cmdDH = cmd.DeploymentHash
		if cmd.DeploymentHash != boundDH {
			return apperr.Forbidden("agent is not bound to this command's deployment")
		}

		applied, err = store.UpdateStatus(ctx, req.CommandID, req.Status, req.Result, req.Error)
		return err
	})
	if db.IsNoRows(err) {
		return apperr.NotFound("command not found")
	}
	if err != nil {
		return err
	}
	if !applied {
		return apperr.Conflict("command is terminal or the transition is not permitted")
	}

	s.auditLog.Write(ctx, audit.Entry{Actor: agentID.String(), DeploymentHash: cmdDH, Action: "command.reported", Outcome: "success"})
	return nil
}
