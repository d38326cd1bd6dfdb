package authn

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/google/uuid"
)

// AgentLookup loads the deployment_hash an agent id is bound to. Satisfied by
// pkg/agent.Store; declared here as a narrow interface to avoid a dependency
// cycle between pkg/authn and pkg/agent.
type AgentLookup interface {
	DeploymentHashForAgent(ctx context.Context, agentID uuid.UUID) (string, error)
}

// SecretGetter reads the current agent token for a deployment. Satisfied by
// pkg/secrets.Client.
type SecretGetter interface {
	Get(ctx context.Context, deploymentHash string) (string, error)
}

// AgentAuthenticator resolves X-Agent-Id + Bearer agent-token credentials
// (§4.11's third credential kind) into an Agent principal.
type AgentAuthenticator struct {
	Agents  AgentLookup
	Secrets SecretGetter
}

// Authenticate loads the agent's bound deployment, fetches the current token
// from the secret store, and constant-time compares it against presented.
func (a *AgentAuthenticator) Authenticate(ctx context.Context, agentID uuid.UUID, presented string) (*Agent, error) {
	dh, err := a.Agents.DeploymentHashForAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("resolving agent: %w", err)
	}

	current, err := a.Secrets.Get(ctx, dh)
	if err != nil {
		return nil, fmt.Errorf("fetching agent token: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(current), []byte(presented)) != 1 {
		return nil, fmt.Errorf("token mismatch")
	}

	return &Agent{AgentID: agentID, DeploymentHash: dh}, nil
}
