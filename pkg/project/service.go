package project

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/trydirect/stacker/internal/apperr"
	"github.com/trydirect/stacker/internal/db"
)

// Service implements project CRUD over a connection pool.
type Service struct {
	pool   db.Pool
	logger *slog.Logger
}

// NewService constructs a project Service.
func NewService(pool db.Pool, logger *slog.Logger) *Service {
	return &Service{pool: pool, logger: logger}
}

// Create inserts a new project for userID.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Project, error) {
	p, err := NewStore(s.pool).Create(ctx, userID, req)
	if err != nil {
		return Project{}, apperr.Internal("creating project", err)
	}
	return p, nil
}

// Get returns a single project owned by userID.
func (s *Service) Get(ctx context.Context, id uuid.UUID, userID string) (Project, error) {
	p, err := NewStore(s.pool).GetByID(ctx, id, userID)
	if err != nil {
		return Project{}, wrapErr(err, "fetching project")
	}
	return p, nil
}

// List returns all projects owned by userID.
func (s *Service) List(ctx context.Context, userID string) ([]Project, error) {
	ps, err := NewStore(s.pool).ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("listing projects", err)
	}
	return ps, nil
}

// Delete removes a project owned by userID.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	if err := NewStore(s.pool).Delete(ctx, id, userID); err != nil {
		return apperr.NotFound("project not found")
	}
	return nil
}

func wrapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if db.IsNoRows(err) {
		return apperr.NotFound("project not found")
	}
	return apperr.Internal(msg, err)
}
