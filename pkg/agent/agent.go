// Package agent implements the agent registry (§4.4): registration, token
// issuance via pkg/secrets, heartbeat-driven liveness, and the background
// sweeper that demotes agents that stop heartbeating.
package agent

import (
	"time"

	"github.com/google/uuid"
)

// Status values for Agent.Status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusStale   = "stale"
)

// Agent is a process bound to exactly one deployment_hash (§3).
type Agent struct {
	ID              uuid.UUID
	DeploymentHash  string
	AgentVersion    string
	Capabilities    []string
	SystemInfo      map[string]any
	Status          string
	LastHeartbeatAt time.Time
	CreatedAt       time.Time
}

// RegisterRequest is the JSON body for POST /api/v1/agent/register.
type RegisterRequest struct {
	DeploymentHash string         `json:"deployment_hash" validate:"required"`
	AgentVersion   string         `json:"agent_version" validate:"required"`
	Capabilities   []string       `json:"capabilities"`
	SystemInfo     map[string]any `json:"system_info"`
}

// RegisterResponse carries the agent id and its one-time token (§4.4 step 5:
// "return the token to the caller exactly once; no subsequent API reveals it").
type RegisterResponse struct {
	AgentID    uuid.UUID `json:"agent_id"`
	AgentToken string    `json:"agent_token"`
}

// HeartbeatRequest is the JSON body for POST /api/v1/agent/heartbeat.
type HeartbeatRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=online offline stale"`
}
