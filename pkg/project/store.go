package project

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trydirect/stacker/internal/db"
)

// Store provides raw-SQL database operations for projects.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a project Store backed by dbtx.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const projectColumns = `id, stack_id, user_id, name, metadata, created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	var metadata []byte
	err := row.Scan(&p.ID, &p.StackID, &p.UserID, &p.Name, &metadata, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return Project{}, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	return p, nil
}

// Create inserts a new project owned by userID.
func (s *Store) Create(ctx context.Context, userID string, req CreateRequest) (Project, error) {
	metadataJSON, err := json.Marshal(req.Metadata)
	if err != nil {
		return Project{}, fmt.Errorf("marshaling metadata: %w", err)
	}

	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO project (stack_id, user_id, name, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING `+projectColumns,
		req.StackID, userID, req.Name, metadataJSON,
	)
	return scanProject(row)
}

// GetByID returns a project by id, scoped to its owner.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID, userID string) (Project, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+projectColumns+` FROM project WHERE id = $1 AND user_id = $2`, id, userID)
	return scanProject(row)
}

// ListByUser returns all projects owned by userID.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.dbtx.Query(ctx, `SELECT `+projectColumns+` FROM project WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a project, scoped to its owner. Cascades to deployments (migrations §init).
func (s *Store) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := s.dbtx.Exec(ctx, `DELETE FROM project WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project not found")
	}
	return nil
}
