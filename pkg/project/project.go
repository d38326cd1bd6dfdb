// Package project implements the Project entity: the top-level grouping a
// user's deployments belong to. deployment.project_id references it, but
// no CRUD surface for projects existed before this package.
package project

import (
	"time"

	"github.com/google/uuid"
)

// Project groups a user's deployments under one stack definition.
type Project struct {
	ID        uuid.UUID
	StackID   uuid.UUID
	UserID    string
	Name      string
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateRequest is the public create() payload.
type CreateRequest struct {
	StackID  uuid.UUID      `json:"stack_id" validate:"required"`
	Name     string         `json:"name" validate:"required,max=200"`
	Metadata map[string]any `json:"metadata"`
}
