package deployment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trydirect/stacker/internal/httpserver"
	"github.com/trydirect/stacker/pkg/authn"
)

// Handler provides HTTP handlers for the deployment API (§6).
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a deployment Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the user-facing deployment endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", authn.RequireUser(h.handleSubmit))
	r.Get("/", authn.RequireUser(h.handleList))
	r.Get("/project/{project_id}", authn.RequireUser(h.handleLatestForProject))
	r.Get("/{deployment_hash}", authn.RequireUser(h.handleGet))
	r.Post("/{deployment_hash}/teardown", authn.RequireUser(h.handleTeardown))
	return r
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user := authn.UserFromContext(r.Context())

	var req SubmitRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	dep, err := h.svc.Submit(r.Context(), user.UserID, req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondCreated(w, dep.DeploymentHash, dep)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user := authn.UserFromContext(r.Context())

	deps, err := h.svc.List(r.Context(), user.UserID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondList(w, deps, nil)
}

func (h *Handler) handleLatestForProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")

	dep, err := h.svc.LatestForProject(r.Context(), projectID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondItem(w, dep)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	dh := chi.URLParam(r, "deployment_hash")

	dep, err := h.svc.Get(r.Context(), dh)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondItem(w, dep)
}

func (h *Handler) handleTeardown(w http.ResponseWriter, r *http.Request) {
	user := authn.UserFromContext(r.Context())
	dh := chi.URLParam(r, "deployment_hash")

	if err := h.svc.Teardown(r.Context(), user.UserID, dh); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondItem(w, map[string]string{"status": "teardown_requested"})
}
