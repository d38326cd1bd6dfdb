// Package command implements the priority command queue (§4.5): enqueue,
// priority-ordered single-delivery dequeue, cancellation, and result
// reporting against a DAG of statuses.
package command

import (
	"time"

	"github.com/google/uuid"
)

// Priority is the caller-facing urgency of a command.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// rank maps a Priority to its numeric ordering in the dispatch index (§4.5).
func (p Priority) rank() int16 {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// Status is a command's position in the §3 status DAG:
//
//	pending → sent → {running → {completed | failed | timed_out}} | cancelled
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

// terminal statuses are one-way: no further transition is ever accepted.
var terminal = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
	StatusTimedOut:  true,
	StatusCancelled: true,
}

// allowed enumerates the DAG's edges. A transition not listed here is rejected.
var allowed = map[Status]map[Status]bool{
	StatusPending: {StatusSent: true, StatusCancelled: true},
	StatusSent:    {StatusRunning: true, StatusCompleted: true, StatusFailed: true, StatusTimedOut: true, StatusCancelled: true},
	StatusRunning: {StatusCompleted: true, StatusFailed: true, StatusTimedOut: true},
}

// canTransition reports whether from → to is a legal edge in the status DAG.
func canTransition(from, to Status) bool {
	if terminal[from] {
		return false
	}
	return allowed[from][to]
}

// Command is a unit of work targeted at the agent bound to a deployment (§3).
type Command struct {
	ID              int64
	CommandID       uuid.UUID
	DeploymentHash  string
	CommandType     string
	Priority        Priority
	Parameters      map[string]any
	TimeoutSeconds  int
	Status          Status
	CreatedByUserID string
	IssuedAt        time.Time
	SentAt          *time.Time
	CompletedAt     *time.Time
	Result          map[string]any
	ErrorMessage    *string
}

// defaultTimeoutSeconds is used when the caller passes 0 (§3: "0 ⇒ default").
const defaultTimeoutSeconds = 300

// EnqueueRequest is the public enqueue() payload (§4.5).
type EnqueueRequest struct {
	DeploymentHash string         `json:"deployment_hash" validate:"required"`
	CommandType    string         `json:"command_type" validate:"required"`
	Priority       Priority       `json:"priority" validate:"required,oneof=low normal high critical"`
	Parameters     map[string]any `json:"parameters"`
	TimeoutSeconds int            `json:"timeout_seconds"`
}

// ReportResultRequest is the public report_result() payload (§4.5).
type ReportResultRequest struct {
	CommandID   uuid.UUID      `json:"command_id" validate:"required"`
	Status      Status         `json:"status" validate:"required,oneof=completed failed running"`
	Result      map[string]any `json:"result"`
	Error       *string        `json:"error"`
	StartedAt   *time.Time     `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at"`
}
