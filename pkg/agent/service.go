package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trydirect/stacker/internal/apperr"
	"github.com/trydirect/stacker/internal/audit"
	"github.com/trydirect/stacker/internal/db"
)

// DeploymentLookup validates that a deployment_hash identifies an existing,
// non-terminal deployment (§4.4 step 1). Satisfied by pkg/deployment.Store;
// declared narrowly here to avoid an import cycle.
type DeploymentLookup interface {
	IsRegistrable(ctx context.Context, deploymentHash string) (bool, error)
}

// SecretPutter issues the agent token to the external secret store.
type SecretPutter interface {
	Put(ctx context.Context, deploymentHash, token string) error
}

// Service implements the agent registry's business rules (§4.4).
type Service struct {
	pool        db.Pool
	deployments DeploymentLookup
	secrets     SecretPutter
	auditLog    *audit.Writer
	logger      *slog.Logger
}

// NewService builds a Service. pool is used to open the registration
// transaction; store reads/writes within it use a *Store scoped to the tx.
func NewService(pool db.Pool, deployments DeploymentLookup, secrets SecretPutter, auditLog *audit.Writer, logger *slog.Logger) *Service {
	return &Service{pool: pool, deployments: deployments, secrets: secrets, auditLog: auditLog, logger: logger}
}

// Register implements §4.4's registration algorithm.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	ok, err := s.deployments.IsRegistrable(ctx, req.DeploymentHash)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("checking deployment: %w", err)
	}
	if !ok {
		return RegisterResponse{}, apperr.NotFound("unknown or terminal deployment")
	}

	token := generateToken()
	var agentID uuid.UUID

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := NewStore(tx)
		a, err := store.Upsert(ctx, req.DeploymentHash, req.AgentVersion, req.Capabilities, req.SystemInfo)
		if err != nil {
			return fmt.Errorf("upserting agent: %w", err)
		}
		agentID = a.ID

		// Secret-store failure rolls back the transaction (§4.4 step 3).
		if err := s.secrets.Put(ctx, req.DeploymentHash, token); err != nil {
			return apperr.DependencyUnavailable("secret store unavailable", err)
		}
		return nil
	})
	if err != nil {
		return RegisterResponse{}, err
	}

	s.auditLog.Write(ctx, audit.Entry{
		Actor:          agentID.String(),
		DeploymentHash: req.DeploymentHash,
		Action:         "agent.registered",
		Outcome:        "success",
	})

	return RegisterResponse{AgentID: agentID, AgentToken: token}, nil
}

// Heartbeat updates liveness. A failed heartbeat must never fail the
// surrounding long-poll (§4.6 step 1 / §7's propagation policy); callers in
// the dispatch loop should log and continue rather than abort on error.
func (s *Service) Heartbeat(ctx context.Context, agentID uuid.UUID, status string) error {
	if status == "" {
		status = StatusOnline
	}
	store := NewStore(s.pool)
	return store.Heartbeat(ctx, agentID, status)
}

// RotateToken issues a new token for the agent's deployment, invalidating
// the previous one (§8 scenario 4).
func (s *Service) RotateToken(ctx context.Context, agentID uuid.UUID) (string, error) {
	store := NewStore(s.pool)
	a, err := store.GetByID(ctx, agentID)
	if err != nil {
		return "", apperr.NotFound("agent not found")
	}

	token := generateToken()
	if err := s.secrets.Put(ctx, a.DeploymentHash, token); err != nil {
		return "", apperr.DependencyUnavailable("secret store unavailable", err)
	}

	s.auditLog.Write(ctx, audit.Entry{
		Actor:          agentID.String(),
		DeploymentHash: a.DeploymentHash,
		Action:         "agent.token_rotated",
		Outcome:        "success",
	})

	return token, nil
}

// ListAgents returns the agents bound to a deployment (at most one, per §3).
func (s *Service) ListAgents(ctx context.Context, deploymentHash string) ([]Agent, error) {
	store := NewStore(s.pool)
	return store.ListForDeployment(ctx, deploymentHash)
}
