// Package rating implements user-submitted quality ratings on a completed
// deployment.
package rating

import (
	"time"

	"github.com/google/uuid"
)

// Rating is one user's 1-5 score (plus optional comment) on a deployment,
// unique per (deployment_hash, user_id).
type Rating struct {
	ID             uuid.UUID `json:"id"`
	DeploymentHash string    `json:"deployment_hash"`
	UserID         string    `json:"user_id"`
	Score          int16     `json:"score"`
	Comment        *string   `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SubmitRequest is the public create() payload.
type SubmitRequest struct {
	Score   int16   `json:"score" validate:"required,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}
