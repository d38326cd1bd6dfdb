package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trydirect/stacker/internal/db"
)

// Store provides raw-SQL database operations for agents.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates an agent Store backed by dbtx (a pool or an open tx).
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const agentColumns = `id, deployment_hash, agent_version, capabilities, system_info, status, last_heartbeat_at, created_at`

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	var systemInfo []byte
	err := row.Scan(&a.ID, &a.DeploymentHash, &a.AgentVersion, &a.Capabilities, &systemInfo, &a.Status, &a.LastHeartbeatAt, &a.CreatedAt)
	if err != nil {
		return Agent{}, err
	}
	if len(systemInfo) > 0 {
		if err := json.Unmarshal(systemInfo, &a.SystemInfo); err != nil {
			return Agent{}, fmt.Errorf("decoding system_info: %w", err)
		}
	}
	return a, nil
}

// Upsert creates the agent row for deploymentHash, or resets its mutable
// fields if one already exists (§4.4 step 2).
func (s *Store) Upsert(ctx context.Context, deploymentHash, agentVersion string, capabilities []string, systemInfo map[string]any) (Agent, error) {
	systemInfoJSON, err := json.Marshal(systemInfo)
	if err != nil {
		return Agent{}, fmt.Errorf("marshaling system_info: %w", err)
	}

	query := `
		INSERT INTO agent (deployment_hash, agent_version, capabilities, system_info, status, last_heartbeat_at)
		VALUES ($1, $2, $3, $4, 'online', now())
		ON CONFLICT (deployment_hash) DO UPDATE SET
			agent_version = EXCLUDED.agent_version,
			capabilities = EXCLUDED.capabilities,
			system_info = EXCLUDED.system_info,
			status = 'online',
			last_heartbeat_at = now()
		RETURNING ` + agentColumns

	row := s.dbtx.QueryRow(ctx, query, deploymentHash, agentVersion, capabilities, systemInfoJSON)
	return scanAgent(row)
}

// GetByID returns a single agent by id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Agent, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+agentColumns+` FROM agent WHERE id = $1`, id)
	return scanAgent(row)
}

// GetByDeploymentHash returns the single agent bound to a deployment.
func (s *Store) GetByDeploymentHash(ctx context.Context, deploymentHash string) (Agent, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+agentColumns+` FROM agent WHERE deployment_hash = $1`, deploymentHash)
	return scanAgent(row)
}

// DeploymentHashForAgent satisfies authn.AgentLookup.
func (s *Store) DeploymentHashForAgent(ctx context.Context, agentID uuid.UUID) (string, error) {
	var dh string
	err := s.dbtx.QueryRow(ctx, `SELECT deployment_hash FROM agent WHERE id = $1`, agentID).Scan(&dh)
	if err != nil {
		return "", err
	}
	return dh, nil
}

// HasAgent satisfies deployment.AgentPresence: reports whether any agent has
// ever registered for deploymentHash.
func (s *Store) HasAgent(ctx context.Context, deploymentHash string) (bool, error) {
	var exists bool
	err := s.dbtx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM agent WHERE deployment_hash = $1)`, deploymentHash).Scan(&exists)
	return exists, err
}

// Heartbeat updates last_heartbeat_at and status for an agent.
func (s *Store) Heartbeat(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.dbtx.Exec(ctx, `UPDATE agent SET status = $2, last_heartbeat_at = now() WHERE id = $1`, id, status)
	return err
}

// ListForDeployment returns the (at most one) agent bound to a deployment.
func (s *Store) ListForDeployment(ctx context.Context, deploymentHash string) ([]Agent, error) {
	rows, err := s.dbtx.Query(ctx, `SELECT `+agentColumns+` FROM agent WHERE deployment_hash = $1`, deploymentHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning agent row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkStale demotes agents whose last heartbeat is older than staleAfter but
// newer than offlineAfter, and returns how many were updated.
func (s *Store) MarkStale(ctx context.Context, staleAfter, offlineAfter time.Duration) (int64, error) {
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE agent SET status = 'stale'
		WHERE status = 'online'
		  AND last_heartbeat_at < now() - $1::interval
		  AND last_heartbeat_at >= now() - $2::interval
	`, staleAfter.String(), offlineAfter.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkOffline demotes agents whose last heartbeat is older than offlineAfter.
func (s *Store) MarkOffline(ctx context.Context, offlineAfter time.Duration) (int64, error) {
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE agent SET status = 'offline'
		WHERE status IN ('online', 'stale')
		  AND last_heartbeat_at < now() - $1::interval
	`, offlineAfter.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
