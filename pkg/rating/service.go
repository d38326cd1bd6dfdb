package rating

import (
	"context"
	"log/slog"

	"github.com/trydirect/stacker/internal/apperr"
	"github.com/trydirect/stacker/internal/db"
)

// DeploymentLookup checks a deployment's completion and ownership, narrowed
// to what rating submission needs.
type DeploymentLookup interface {
	IsOwner(ctx context.Context, deploymentHash, userID string) (bool, error)
	IsComplete(ctx context.Context, deploymentHash string) (bool, error)
}

// Service enforces the "rate only your own completed deployment" rule
// before delegating to the store.
type Service struct {
	pool        db.Pool
	deployments DeploymentLookup
	logger      *slog.Logger
}

// NewService builds a rating Service.
func NewService(pool db.Pool, deployments DeploymentLookup, logger *slog.Logger) *Service {
	return &Service{pool: pool, deployments: deployments, logger: logger}
}

// Submit records or replaces userID's rating on deploymentHash. The
// deployment must belong to userID and have reached a completed status.
func (s *Service) Submit(ctx context.Context, deploymentHash, userID string, req SubmitRequest) (Rating, error) {
	owner, err := s.deployments.IsOwner(ctx, deploymentHash, userID)
	if err != nil {
		return Rating{}, apperr.Internal("checking deployment ownership", err)
	}
	if !owner {
		return Rating{}, apperr.Forbidden("deployment does not belong to this user")
	}

	complete, err := s.deployments.IsComplete(ctx, deploymentHash)
	if err != nil {
		return Rating{}, apperr.Internal("checking deployment status", err)
	}
	if !complete {
		return Rating{}, apperr.Conflict("deployment has not completed yet")
	}

	r, err := NewStore(s.pool).Upsert(ctx, deploymentHash, userID, req)
	if err != nil {
		return Rating{}, apperr.Internal("submitting rating", err)
	}
	return r, nil
}

// List returns every rating on a deployment.
func (s *Service) List(ctx context.Context, deploymentHash string) ([]Rating, error) {
	out, err := NewStore(s.pool).ListForDeployment(ctx, deploymentHash)
	if err != nil {
		return nil, apperr.Internal("listing ratings", err)
	}
	return out, nil
}

// Average returns the deployment's mean rating and the number of ratings.
func (s *Service) Average(ctx context.Context, deploymentHash string) (float64, int, error) {
	avg, count, err := NewStore(s.pool).Average(ctx, deploymentHash)
	if err != nil {
		return 0, 0, apperr.Internal("averaging ratings", err)
	}
	return avg, count, nil
}
