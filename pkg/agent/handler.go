package agent

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trydirect/stacker/internal/httpserver"
	"github.com/trydirect/stacker/pkg/authn"
)

// Handler provides HTTP handlers for the agent registry API (§6).
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates an agent Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes returns a chi.Router with the registration route and the
// per-deployment agent list route mounted. HandleHeartbeat is exported and
// mounted by the caller, not here; the long-poll wait route lives in
// pkg/dispatch.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.handleRegister)
	r.Get("/{deployment_hash}", h.handleList)
	return r
}

// handleRegister implements POST /api/v1/agent/register (no auth, bootstraps trust).
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.logger.Error("registering agent", "error", err, "deployment_hash", req.DeploymentHash)
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondItem(w, resp)
}

// HandleHeartbeat implements the agent heartbeat call, authenticated as an
// agent by the middleware chain.
func (h *Handler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	ag := authn.AgentFromContext(r.Context())
	if ag == nil {
		httpserver.RespondEnvelopeError(w, http.StatusUnauthorized, "agent authentication required")
		return
	}

	var req HeartbeatRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.Heartbeat(r.Context(), ag.AgentID, req.Status); err != nil {
		h.logger.Error("recording heartbeat", "error", err, "agent_id", ag.AgentID)
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondItem(w, map[string]string{"status": "ok"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	dh := chi.URLParam(r, "deployment_hash")

	agents, err := h.svc.ListAgents(r.Context(), dh)
	if err != nil {
		h.logger.Error("listing agents", "error", err, "deployment_hash", dh)
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondList(w, agents, nil)
}
