package deployment

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/trydirect/stacker/internal/apperr"
	"github.com/trydirect/stacker/internal/audit"
	"github.com/trydirect/stacker/internal/db"
	"github.com/trydirect/stacker/internal/telemetry"
	"github.com/trydirect/stacker/pkg/command"
	"github.com/trydirect/stacker/pkg/connectors/webhook"
)

// terminal is the set of statuses that end a deployment's lifecycle and
// therefore trigger an outbound marketplace notification (§4.9).
var terminal = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
	StatusError:     true,
}

// Publisher is satisfied by pkg/bus.Client; it decouples the orchestrator
// from the concrete AMQP transport.
type Publisher interface {
	Publish(ctx context.Context, provider, region, flavor string, payload any) error
}

// SecretDeleter is satisfied by pkg/secrets.Client; used to revoke an
// agent's token on teardown (§4.7).
type SecretDeleter interface {
	Delete(ctx context.Context, deploymentHash string) error
}

// CommandEnqueuer is satisfied by pkg/command.Service; used to dispatch the
// teardown "destroy" command to the bound agent.
type CommandEnqueuer interface {
	Enqueue(ctx context.Context, req command.EnqueueRequest, userID string) (command.Command, error)
}

// AgentPresence reports whether an agent has ever registered for a
// deployment, so teardown can skip straight to completed when provisioning
// never got that far (§4.7: "If no agent ever registered... skip straight to completed").
type AgentPresence interface {
	HasAgent(ctx context.Context, deploymentHash string) (bool, error)
}

// Service implements the deployment orchestration state machine (§4.7) and
// applies progress events (§4.8).
type Service struct {
	pool     db.Pool
	bus      Publisher
	secrets  SecretDeleter
	commands CommandEnqueuer
	agents   AgentPresence
	webhooks webhook.Notifier
	auditLog *audit.Writer
	logger   *slog.Logger
}

// NewService constructs a deployment Service.
func NewService(pool db.Pool, bus Publisher, secrets SecretDeleter, commands CommandEnqueuer, agents AgentPresence, webhooks webhook.Notifier, auditLog *audit.Writer, logger *slog.Logger) *Service {
	return &Service{pool: pool, bus: bus, secrets: secrets, commands: commands, agents: agents, webhooks: webhooks, auditLog: auditLog, logger: logger}
}

// Submit creates a deployment row and publishes the provisioning request
// onto the bus (§4.7 submit step).
func (s *Service) Submit(ctx context.Context, userID string, req SubmitRequest) (Deployment, error) {
	dep, err := NewStore(s.pool).Create(ctx, req.ProjectID, userID, req.Metadata)
	if err != nil {
		return Deployment{}, apperr.Internal("creating deployment", err)
	}

	provider, _ := req.Metadata["provider"].(string)
	region, _ := req.Metadata["region"].(string)
	flavor, _ := req.Metadata["flavor"].(string)

	payload := map[string]any{
		"deployment_hash": dep.DeploymentHash,
		"metadata":        req.Metadata,
	}

	if err := s.bus.Publish(ctx, provider, region, flavor, payload); err != nil {
		_ = NewStore(s.pool).UpdateStatus(ctx, dep.DeploymentHash, StatusError)
		s.auditLog.Write(ctx, audit.Entry{Actor: userID, DeploymentHash: dep.DeploymentHash, Action: "deployment.submit_failed", Outcome: "failure"})
		return Deployment{}, apperr.DependencyUnavailable("publishing provisioning request", err)
	}

	if err := NewStore(s.pool).UpdateStatus(ctx, dep.DeploymentHash, StatusInProgress); err != nil {
		return Deployment{}, apperr.Internal("marking deployment in progress", err)
	}
	dep.Status = StatusInProgress

	telemetry.DeploymentTransitionsTotal.WithLabelValues(string(StatusPending), string(StatusInProgress)).Inc()
	s.auditLog.Write(ctx, audit.Entry{Actor: userID, DeploymentHash: dep.DeploymentHash, Action: "deployment.submitted", Outcome: "success"})

	return dep, nil
}

// Get returns a deployment by hash.
func (s *Service) Get(ctx context.Context, deploymentHash string) (Deployment, error) {
	dep, err := NewStore(s.pool).GetByHash(ctx, deploymentHash)
	if db.IsNoRows(err) {
		return Deployment{}, apperr.NotFound("deployment not found")
	}
	if err != nil {
		return Deployment{}, apperr.Internal("fetching deployment", err)
	}
	return dep, nil
}

// List returns all deployments owned by userID.
func (s *Service) List(ctx context.Context, userID string) ([]Deployment, error) {
	deps, err := NewStore(s.pool).ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("listing deployments", err)
	}
	return deps, nil
}

// LatestForProject returns the most recently created deployment under
// projectID.
func (s *Service) LatestForProject(ctx context.Context, projectID string) (Deployment, error) {
	dep, err := NewStore(s.pool).GetLatestByProject(ctx, projectID)
	if db.IsNoRows(err) {
		return Deployment{}, apperr.NotFound("no deployments for project")
	}
	if err != nil {
		return Deployment{}, apperr.Internal("fetching latest deployment", err)
	}
	return dep, nil
}

// IsOwner satisfies command.DeploymentOwnership.
func (s *Service) IsOwner(ctx context.Context, deploymentHash, userID string) (bool, error) {
	return NewStore(s.pool).IsOwner(ctx, deploymentHash, userID)
}

// IsRegistrable satisfies agent.DeploymentLookup.
func (s *Service) IsRegistrable(ctx context.Context, deploymentHash string) (bool, error) {
	return NewStore(s.pool).IsRegistrable(ctx, deploymentHash)
}

// IsComplete satisfies rating.DeploymentLookup.
func (s *Service) IsComplete(ctx context.Context, deploymentHash string) (bool, error) {
	return NewStore(s.pool).IsComplete(ctx, deploymentHash)
}

// Teardown destroys a deployment: it enqueues a destroy command for the
// bound agent (completed by the progress consumer/report_result path), or,
// if no agent ever registered, marks the deployment completed immediately
// (§4.7 teardown).
func (s *Service) Teardown(ctx context.Context, userID, deploymentHash string) error {
	hasAgent, err := s.agents.HasAgent(ctx, deploymentHash)
	if err != nil {
		return apperr.Internal("checking agent presence", err)
	}

	if !hasAgent {
		if err := NewStore(s.pool).UpdateStatus(ctx, deploymentHash, StatusCompleted); err != nil {
			return apperr.Internal("marking deployment completed", err)
		}
		s.deleteSecret(ctx, deploymentHash)
		s.auditLog.Write(ctx, audit.Entry{Actor: userID, DeploymentHash: deploymentHash, Action: "deployment.torn_down", Outcome: "success"})
		return nil
	}

	_, err = s.commands.Enqueue(ctx, command.EnqueueRequest{
		DeploymentHash: deploymentHash,
		CommandType:    "destroy",
		Priority:       command.PriorityHigh,
	}, userID)
	if err != nil {
		return err
	}

	s.auditLog.Write(ctx, audit.Entry{Actor: userID, DeploymentHash: deploymentHash, Action: "deployment.teardown_requested", Outcome: "success"})
	return nil
}

func (s *Service) deleteSecret(ctx context.Context, deploymentHash string) {
	if err := s.secrets.Delete(ctx, deploymentHash); err != nil {
		s.logger.Warn("deleting secret on teardown", "error", err, "deployment_hash", deploymentHash)
	}
}

// ApplyProgress applies a progress event to the deployment it targets,
// enforcing the §4.8 idempotency rule: equal-status re-applications are
// no-ops, and regressions to an earlier state are ignored and logged.
func (s *Service) ApplyProgress(ctx context.Context, deploymentHash string, target Status) error {
	if !recognized[target] {
		s.logger.Warn("progress event with unrecognized status", "status", target, "deployment_hash", deploymentHash)
		return nil
	}

	applied := false
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := NewStore(tx)

		current, err := store.GetStatusForUpdate(ctx, deploymentHash)
		if db.IsNoRows(err) {
			return apperr.NotFound("deployment not found")
		}
		if err != nil {
			return err
		}

		if current == target {
			return nil
		}
		if isStale(current, target) {
			s.logger.Info("ignoring stale progress event", "deployment_hash", deploymentHash, "current", current, "target", target)
			return nil
		}

		if err := store.UpdateStatus(ctx, deploymentHash, target); err != nil {
			return err
		}
		telemetry.DeploymentTransitionsTotal.WithLabelValues(string(current), string(target)).Inc()
		applied = true
		return nil
	})
	if err != nil {
		return err
	}

	if applied && terminal[target] {
		s.notifyWebhook(deploymentHash, target)
	}
	return nil
}

// notifyWebhook fires the marketplace outbound notification for a terminal
// status transition (§4.9). It reads the subscriber URL/secret out of the
// deployment's metadata, set at submit time, and runs on a detached context
// since the request that produced this transition (a bus consumer delivery)
// has nothing to wait on.
func (s *Service) notifyWebhook(deploymentHash string, target Status) {
	dep, err := NewStore(s.pool).GetByHash(context.Background(), deploymentHash)
	if err != nil {
		s.logger.Warn("loading deployment for webhook notification", "error", err, "deployment_hash", deploymentHash)
		return
	}

	url, _ := dep.Metadata["webhook_url"].(string)
	if url == "" {
		return
	}
	secret, _ := dep.Metadata["webhook_secret"].(string)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := s.webhooks.Notify(ctx, url, secret, webhook.Event{
			DeploymentHash: deploymentHash,
			Status:         string(target),
			OccurredAt:     time.Now(),
		})
		if err != nil {
			s.logger.Warn("notifying webhook subscriber", "error", err, "deployment_hash", deploymentHash)
		}
	}()
}
