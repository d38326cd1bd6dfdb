package command

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trydirect/stacker/internal/apperr"
	"github.com/trydirect/stacker/internal/httpserver"
	"github.com/trydirect/stacker/pkg/authn"
)

// Handler provides HTTP handlers for the command API (§6).
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a command Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the user-facing command endpoints, which require a User
// principal (§8 scenario 3: unauthenticated POST /api/v1/commands → 403).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", authn.RequireUser(h.handleCreate))
	r.Get("/{deployment_hash}", authn.RequireUser(h.handleList))
	r.Post("/{command_id}/cancel", authn.RequireUser(h.handleCancel))
	return r
}

// MountAgentRoutes registers the agent-facing result-reporting endpoint
// (Agent principal required) onto r, alongside whatever other agent routes
// the caller shares the router with (e.g. the dispatch wait endpoint), since
// both live under the same /agent/commands prefix.
func (h *Handler) MountAgentRoutes(r chi.Router) {
	r.Post("/report", authn.RequireAgent(h.handleReportResult))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user := authn.UserFromContext(r.Context())

	var req EnqueueRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	cmd, err := h.svc.Enqueue(r.Context(), req, user.UserID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondCreated(w, cmd.CommandID.String(), cmd)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	dh := chi.URLParam(r, "deployment_hash")

	var status *Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := Status(raw)
		status = &s
	}

	cmds, err := h.svc.ListForDeployment(r.Context(), dh, status)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondList(w, cmds, nil)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	user := authn.UserFromContext(r.Context())

	commandID, err := uuid.Parse(chi.URLParam(r, "command_id"))
	if err != nil {
		httpserver.RespondAppError(w, h.logger, apperr.InvalidInput("command_id", "invalid command id"))
		return
	}

	if err := h.svc.Cancel(r.Context(), commandID, user.UserID); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondItem(w, map[string]string{"status": "cancelled"})
}

func (h *Handler) handleReportResult(w http.ResponseWriter, r *http.Request) {
	agent := authn.AgentFromContext(r.Context())

	var req ReportResultRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.ReportResult(r.Context(), agent.AgentID, req); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondItem(w, map[string]string{"status": "ok"})
}
