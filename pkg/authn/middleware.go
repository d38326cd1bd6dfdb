package authn

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/trydirect/stacker/internal/apperr"
	"github.com/trydirect/stacker/internal/httpserver"
)

// Middleware authenticates the caller via, in order: agent credentials
// (when X-Agent-Id is present), bearer token, session cookie (§4.11). The resulting Identity is installed on
// the request context. A request presenting no credentials at all is
// rejected with 403 (§8 scenario 3); a request presenting agent credentials
// that fail verification is rejected with 401 (§4.11, §8 scenario 4).
func Middleware(users *UserClient, agents *AgentAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolve(r, users, agents)
			if err != nil {
				logger.Warn("authentication failed", "error", err)
				httpserver.RespondAppError(w, logger, err)
				return
			}
			if identity == nil {
				httpserver.RespondError(w, http.StatusForbidden, "forbidden", "no valid authentication provided")
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), identity)))
		})
	}
}

func resolve(r *http.Request, users *UserClient, agents *AgentAuthenticator) (*Identity, error) {
	ctx := r.Context()

	// 1. Agent credentials: X-Agent-Id + Bearer <agent-token>. Failure here
	// is always 401, never a silent fall-through to the other two kinds.
	if agentIDRaw := r.Header.Get("X-Agent-Id"); agentIDRaw != "" {
		agentID, err := uuid.Parse(agentIDRaw)
		if err != nil {
			return nil, apperr.Unauthorized("invalid agent id")
		}

		token := bearerToken(r)
		if token == "" {
			return nil, apperr.Unauthorized("missing agent token")
		}

		ag, err := agents.Authenticate(ctx, agentID, token)
		if err != nil {
			return nil, apperr.Unauthorized("invalid agent credentials")
		}
		return &Identity{Agent: ag}, nil
	}

	// 2. Bearer token.
	if token := bearerToken(r); token != "" {
		u, err := users.Me(ctx, token)
		if err != nil {
			return nil, apperr.Unauthorized("invalid token")
		}
		u.Method = MethodBearer
		return &Identity{User: u}, nil
	}

	// 3. Session cookie `access_token`, validated the same way as Bearer.
	if c, err := r.Cookie("access_token"); err == nil && c.Value != "" {
		u, err := users.Me(ctx, c.Value)
		if err != nil {
			return nil, apperr.Unauthorized("invalid token")
		}
		u.Method = MethodCookie
		return &Identity{User: u}, nil
	}

	return nil, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if strings.HasPrefix(h, "bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "bearer "))
	}
	return ""
}

// RequireUser returns an http.HandlerFunc wrapper that 403s unless the
// resolved Identity carries a User principal, for routes that must not be
// called by an agent.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if u := UserFromContext(r.Context()); u == nil {
			httpserver.RespondError(w, http.StatusForbidden, "forbidden", "user authentication required")
			return
		}
		next(w, r)
	}
}

// RequireAgent returns an http.HandlerFunc wrapper that 401s unless the
// resolved Identity carries an Agent principal, for the agent-only routes.
func RequireAgent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a := AgentFromContext(r.Context()); a == nil {
			httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "agent authentication required")
			return
		}
		next(w, r)
	}
}
