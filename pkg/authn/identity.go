// Package authn resolves the three credential kinds accepted at the HTTP
// boundary (bearer token, session cookie, agent credentials) into a single
// principal carried on the request context.
package authn

import (
	"context"

	"github.com/google/uuid"
)

// Method names the credential kind that produced an Identity.
type Method string

const (
	MethodBearer Method = "bearer"
	MethodCookie Method = "cookie"
	MethodAgent  Method = "agent"
)

// User is the principal resolved from a bearer token or session cookie via
// the external auth service's /me endpoint.
type User struct {
	UserID string // opaque external user id, as returned by AUTH_URL
	Email  string
	Method Method
}

// Agent is the principal resolved from X-Agent-Id + Bearer agent-token
// credentials. It is bound to exactly one deployment.
type Agent struct {
	AgentID        uuid.UUID
	DeploymentHash string
}

// Identity is installed on the request context by Middleware. Exactly one of
// User or Agent is non-nil; installing both is a programming error (§4.11).
type Identity struct {
	User  *User
	Agent *Agent
}

type contextKey string

const identityKey contextKey = "authn_identity"

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the Identity installed by Middleware, or nil if none.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// UserFromContext returns the authenticated user principal, or nil if the
// caller authenticated as an agent or not at all.
func UserFromContext(ctx context.Context) *User {
	id := FromContext(ctx)
	if id == nil {
		return nil
	}
	return id.User
}

// AgentFromContext returns the authenticated agent principal, or nil if the
// caller authenticated as a user or not at all.
func AgentFromContext(ctx context.Context) *Agent {
	id := FromContext(ctx)
	if id == nil {
		return nil
	}
	return id.Agent
}
