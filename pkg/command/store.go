package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trydirect/stacker/internal/db"
)

// Store provides raw-SQL database operations for commands and the queue
// projection table backing the §4.5 dispatch index.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a command Store backed by dbtx (a pool or an open tx).
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const commandColumns = `id, command_id, deployment_hash, command_type, priority, parameters, timeout_seconds, status, created_by_user_id, issued_at, sent_at, completed_at, result, error_message`

func scanCommand(row pgx.Row) (Command, error) {
	var c Command
	var parameters, result []byte
	err := row.Scan(
		&c.ID, &c.CommandID, &c.DeploymentHash, &c.CommandType, &c.Priority, &parameters,
		&c.TimeoutSeconds, &c.Status, &c.CreatedByUserID, &c.IssuedAt, &c.SentAt, &c.CompletedAt,
		&result, &c.ErrorMessage,
	)
	if err != nil {
		return Command{}, err
	}
	if len(parameters) > 0 {
		if err := json.Unmarshal(parameters, &c.Parameters); err != nil {
			return Command{}, fmt.Errorf("decoding parameters: %w", err)
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &c.Result); err != nil {
			return Command{}, fmt.Errorf("decoding result: %w", err)
		}
	}
	return c, nil
}

// Enqueue inserts a pending command and its queue projection in one
// statement pair, run by the caller inside a transaction (§4.5 step 2).
func (s *Store) Enqueue(ctx context.Context, req EnqueueRequest, createdByUserID string) (Command, error) {
	timeout := req.TimeoutSeconds
	if timeout == 0 {
		timeout = defaultTimeoutSeconds
	}

	parametersJSON, err := json.Marshal(req.Parameters)
	if err != nil {
		return Command{}, fmt.Errorf("marshaling parameters: %w", err)
	}

	var id int64
	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO command (deployment_hash, command_type, priority, priority_rank, parameters, timeout_seconds, status, created_by_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)
		RETURNING id
	`, req.DeploymentHash, req.CommandType, req.Priority, req.Priority.rank(), parametersJSON, timeout, createdByUserID)
	if err := row.Scan(&id); err != nil {
		return Command{}, err
	}

	if _, err := s.dbtx.Exec(ctx, `
		INSERT INTO command_queue (command_id_fk, deployment_hash, priority_rank, enqueued_at)
		VALUES ($1, $2, $3, now())
	`, id, req.DeploymentHash, req.Priority.rank()); err != nil {
		return Command{}, err
	}

	row = s.dbtx.QueryRow(ctx, `SELECT `+commandColumns+` FROM command WHERE id = $1`, id)
	return scanCommand(row)
}

// Dequeue implements the §4.5 dequeue transaction verbatim: lock and claim
// the highest-priority, earliest-enqueued pending command for a deployment,
// or return nil if none is available. The caller must construct this Store
// over an open pgx.Tx (db.WithTx) and keep the transaction short-lived —
// never span it across a sleep.
func (s *Store) Dequeue(ctx context.Context, deploymentHash string) (*Command, error) {
	var commandIDFK int64
	var commandID uuid.UUID

	err := s.dbtx.QueryRow(ctx, `
		SELECT c.id, c.command_id
		  FROM command_queue q JOIN command c ON c.id = q.command_id_fk
		 WHERE q.deployment_hash = $1
		   AND c.status = 'pending'
		 ORDER BY q.priority_rank DESC, q.enqueued_at ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED
	`, deploymentHash).Scan(&commandIDFK, &commandID)
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.dbtx.Exec(ctx, `UPDATE command SET status = 'sent', sent_at = now() WHERE id = $1`, commandIDFK); err != nil {
		return nil, err
	}
	if _, err := s.dbtx.Exec(ctx, `DELETE FROM command_queue WHERE command_id_fk = $1`, commandIDFK); err != nil {
		return nil, err
	}

	row := s.dbtx.QueryRow(ctx, `SELECT `+commandColumns+` FROM command WHERE id = $1`, commandIDFK)
	c, err := scanCommand(row)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByCommandID returns a single command by its externally visible UUID.
func (s *Store) GetByCommandID(ctx context.Context, commandID uuid.UUID) (Command, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+commandColumns+` FROM command WHERE command_id = $1`, commandID)
	return scanCommand(row)
}

// ListForDeployment returns commands for a deployment, optionally filtered by status.
func (s *Store) ListForDeployment(ctx context.Context, deploymentHash string, status *Status) ([]Command, error) {
	var rows pgx.Rows
	var err error
	if status != nil {
		rows, err = s.dbtx.Query(ctx, `SELECT `+commandColumns+` FROM command WHERE deployment_hash = $1 AND status = $2 ORDER BY issued_at DESC`, deploymentHash, *status)
	} else {
		rows, err = s.dbtx.Query(ctx, `SELECT `+commandColumns+` FROM command WHERE deployment_hash = $1 ORDER BY issued_at DESC`, deploymentHash)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning command row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Cancel transitions a command to cancelled and removes its queue
// projection, only while pending or sent (§4.5 edge-case policy). Returns
// false if the command was not in a cancellable status. Callers needing
// atomicity should construct this Store over an open pgx.Tx.
func (s *Store) Cancel(ctx context.Context, commandID uuid.UUID) (bool, error) {
	var id int64
	var status Status
	err := s.dbtx.QueryRow(ctx, `SELECT id, status FROM command WHERE command_id = $1 FOR UPDATE`, commandID).Scan(&id, &status)
	if err != nil {
		return false, err
	}
	if status != StatusPending && status != StatusSent {
		return false, nil
	}

	if _, err := s.dbtx.Exec(ctx, `UPDATE command SET status = 'cancelled' WHERE id = $1`, id); err != nil {
		return false, err
	}
	if _, err := s.dbtx.Exec(ctx, `DELETE FROM command_queue WHERE command_id_fk = $1`, id); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateStatus applies a result report, enforcing the status DAG (§3). It
// returns (applied=false, nil) if the transition is illegal — callers must
// surface that as a conflict, never as an error. Callers needing atomicity
// should construct this Store over an open pgx.Tx.
func (s *Store) UpdateStatus(ctx context.Context, commandID uuid.UUID, to Status, result map[string]any, errMsg *string) (bool, error) {
	var id int64
	var from Status
	err := s.dbtx.QueryRow(ctx, `SELECT id, status FROM command WHERE command_id = $1 FOR UPDATE`, commandID).Scan(&id, &from)
	if err != nil {
		return false, err
	}
	if !canTransition(from, to) {
		return false, nil
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshaling result: %w", err)
	}

	var completedAt *time.Time
	if terminal[to] {
		now := time.Now().UTC()
		completedAt = &now
	}

	_, err = s.dbtx.Exec(ctx, `
		UPDATE command SET status = $2, result = $3, error_message = $4, completed_at = COALESCE($5, completed_at)
		WHERE id = $1
	`, id, to, resultJSON, errMsg, completedAt)
	return err == nil, err
}

// MarkTimedOut transitions sent/running commands whose deadline has elapsed
// to timed_out, and returns how many were updated (§4.5 reaper).
func (s *Store) MarkTimedOut(ctx context.Context) (int64, error) {
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE command SET status = 'timed_out', completed_at = now()
		WHERE status IN ('sent', 'running')
		  AND sent_at IS NOT NULL
		  AND sent_at < now() - (timeout_seconds || ' seconds')::interval
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
