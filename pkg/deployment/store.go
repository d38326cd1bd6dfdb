package deployment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trydirect/stacker/internal/db"
)

// Store provides raw-SQL database operations for deployments.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a deployment Store backed by dbtx.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const deploymentColumns = `id, project_id, deployment_hash, user_id, status, metadata, created_at, updated_at`

func scanDeployment(row pgx.Row) (Deployment, error) {
	var d Deployment
	var metadata []byte
	err := row.Scan(&d.ID, &d.ProjectID, &d.DeploymentHash, &d.UserID, &d.Status, &metadata, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Deployment{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return Deployment{}, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	return d, nil
}

// Create inserts a new deployment row with a freshly minted hash, status
// pending (§4.7: "create --> pending").
func (s *Store) Create(ctx context.Context, projectID, userID string, metadata map[string]any) (Deployment, error) {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return Deployment{}, fmt.Errorf("marshaling metadata: %w", err)
	}

	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO deployment (project_id, deployment_hash, user_id, status, metadata)
		VALUES ($1, $2, $3, 'pending', $4)
		RETURNING `+deploymentColumns,
		projectID, generateDeploymentHash(), userID, metadataJSON,
	)
	return scanDeployment(row)
}

// GetByHash returns a deployment by its externally visible hash.
func (s *Store) GetByHash(ctx context.Context, deploymentHash string) (Deployment, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+deploymentColumns+` FROM deployment WHERE deployment_hash = $1`, deploymentHash)
	return scanDeployment(row)
}

// IsOwner reports whether userID owns the deployment identified by deploymentHash.
func (s *Store) IsOwner(ctx context.Context, deploymentHash, userID string) (bool, error) {
	var ownerID string
	err := s.dbtx.QueryRow(ctx, `SELECT user_id FROM deployment WHERE deployment_hash = $1`, deploymentHash).Scan(&ownerID)
	if db.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ownerID == userID, nil
}

// registrableStatuses are the statuses under which an agent may still bind
// to a deployment (anything short of the terminal outcomes, per §4.4's
// "unknown or terminal deployment" rejection).
var registrableStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusWaitStart:  true,
	StatusWaitResume: true,
	StatusPaused:     true,
}

// IsRegistrable satisfies agent.DeploymentLookup: an agent may only
// register against a deployment that exists and is not yet terminal.
func (s *Store) IsRegistrable(ctx context.Context, deploymentHash string) (bool, error) {
	var status Status
	err := s.dbtx.QueryRow(ctx, `SELECT status FROM deployment WHERE deployment_hash = $1`, deploymentHash).Scan(&status)
	if db.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return registrableStatuses[status], nil
}

// IsComplete reports whether deploymentHash has reached the completed
// status, satisfying rating.DeploymentLookup.
func (s *Store) IsComplete(ctx context.Context, deploymentHash string) (bool, error) {
	var status Status
	err := s.dbtx.QueryRow(ctx, `SELECT status FROM deployment WHERE deployment_hash = $1`, deploymentHash).Scan(&status)
	if db.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status == StatusCompleted, nil
}

// GetLatestByProject returns the most recently created deployment under
// projectID.
func (s *Store) GetLatestByProject(ctx context.Context, projectID string) (Deployment, error) {
	row := s.dbtx.QueryRow(ctx, `
		SELECT `+deploymentColumns+` FROM deployment
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		projectID,
	)
	return scanDeployment(row)
}

// ListByUser returns all deployments owned by userID.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Deployment, error) {
	rows, err := s.dbtx.Query(ctx, `SELECT `+deploymentColumns+` FROM deployment WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning deployment row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateStatus sets a deployment's status unconditionally. Callers must have
// already applied the §4.8 idempotency rule before calling this.
func (s *Store) UpdateStatus(ctx context.Context, deploymentHash string, status Status) error {
	_, err := s.dbtx.Exec(ctx, `UPDATE deployment SET status = $2, updated_at = now() WHERE deployment_hash = $1`, deploymentHash, status)
	return err
}

// GetStatusForUpdate locks and returns a deployment's current status, for
// use inside a transaction that then conditionally applies a new one.
func (s *Store) GetStatusForUpdate(ctx context.Context, deploymentHash string) (Status, error) {
	var status Status
	err := s.dbtx.QueryRow(ctx, `SELECT status FROM deployment WHERE deployment_hash = $1 FOR UPDATE`, deploymentHash).Scan(&status)
	return status, err
}
