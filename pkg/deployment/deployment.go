// Package deployment implements the deployment orchestration state machine
// (§4.7) and the progress-event consumer that drives it (§4.8).
package deployment

import "time"

// Status is a deployment's position in the §4.7 state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusWaitResume Status = "wait_resume"
	StatusWaitStart  Status = "wait_start"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
	StatusPaused     Status = "paused"
	StatusConfirmed  Status = "confirmed"
)

// recognized is the set of statuses the progress consumer accepts (§4.8 step 2).
var recognized = map[Status]bool{
	StatusCompleted:  true,
	StatusPaused:     true,
	StatusFailed:     true,
	StatusInProgress: true,
	StatusError:      true,
	StatusWaitResume: true,
	StatusWaitStart:  true,
	StatusConfirmed:  true,
}

// rank orders statuses along the state machine so the progress consumer can
// decide whether an incoming target is "earlier" than the current status and
// therefore stale (§4.8 idempotency rule). Statuses at the same rank are
// lateral branches (wait_start/wait_resume/paused all follow in_progress)
// and are accepted in either direction; terminal statuses share the top
// rank, so nothing ever regresses out of them.
var rank = map[Status]int{
	StatusPending:    0,
	StatusInProgress: 1,
	StatusWaitStart:  2,
	StatusWaitResume: 2,
	StatusPaused:     2,
	StatusConfirmed:  3,
	StatusCompleted:  4,
	StatusFailed:     4,
	StatusError:      4,
}

// isStale reports whether applying `to` on top of `from` would regress the
// state machine (§4.8: "earlier" targets are ignored and logged). Equal
// statuses are handled by the caller as a separate no-op case.
func isStale(from, to Status) bool {
	return rank[to] < rank[from]
}

// Deployment is a single deploy attempt against a project (§3).
type Deployment struct {
	ID             string
	ProjectID      string
	DeploymentHash string
	UserID         string
	Status         Status
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SubmitRequest is the payload for creating and submitting a deployment (§4.7).
type SubmitRequest struct {
	ProjectID string         `json:"project_id" validate:"required"`
	Metadata  map[string]any `json:"metadata"`
}
