package dispatch

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trydirect/stacker/internal/httpserver"
	"github.com/trydirect/stacker/pkg/authn"
)

// Handler provides the agent-facing long-poll HTTP endpoint (§6).
type Handler struct {
	dispatcher    *Dispatcher
	waitBudget    time.Duration
	probeInterval time.Duration
	logger        *slog.Logger
}

// NewHandler constructs a dispatch Handler.
func NewHandler(dispatcher *Dispatcher, waitBudget, probeInterval time.Duration, logger *slog.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, waitBudget: waitBudget, probeInterval: probeInterval, logger: logger}
}

// MountRoutes registers the agent-only wait endpoint onto r, which the
// caller shares with command.Handler's agent-facing routes under the same
// /agent/commands prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/wait/{deployment_hash}", authn.RequireAgent(h.handleWait))
}

// handleWait implements GET /api/v1/agent/commands/wait/{deployment_hash}.
// It bounds the wait at h.waitBudget regardless of the caller's own
// transport timeout, so a slow/aborted client never pins a goroutine open
// past the documented budget.
func (h *Handler) handleWait(w http.ResponseWriter, r *http.Request) {
	ag := authn.AgentFromContext(r.Context())
	dh := chi.URLParam(r, "deployment_hash")

	if ag.DeploymentHash != dh {
		httpserver.RespondEnvelopeError(w, http.StatusForbidden, "agent is not bound to this deployment")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.waitBudget+h.probeInterval)
	defer cancel()

	cmd, err := h.dispatcher.Wait(ctx, dh, ag.AgentID, h.waitBudget, h.probeInterval)
	if err != nil {
		if ctx.Err() != nil {
			// Client disconnected mid-loop (§4.6): nothing was dequeued.
			return
		}
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	if cmd == nil {
		// Budget elapsed with no command available (§4.6 step 5).
		httpserver.RespondItem(w, nil)
		return
	}

	httpserver.RespondItem(w, cmd)
}
