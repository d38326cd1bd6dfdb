package project

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trydirect/stacker/internal/apperr"
	"github.com/trydirect/stacker/internal/httpserver"
	"github.com/trydirect/stacker/pkg/authn"
)

// Handler provides HTTP handlers for project CRUD.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a project Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the project endpoints. All require a User principal.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", authn.RequireUser(h.handleCreate))
	r.Get("/", authn.RequireUser(h.handleList))
	r.Get("/{id}", authn.RequireUser(h.handleGet))
	r.Delete("/{id}", authn.RequireUser(h.handleDelete))
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user := authn.UserFromContext(r.Context())

	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.svc.Create(r.Context(), user.UserID, req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondCreated(w, p.ID.String(), p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user := authn.UserFromContext(r.Context())

	ps, err := h.svc.List(r.Context(), user.UserID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondList(w, ps, nil)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user := authn.UserFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondAppError(w, h.logger, apperr.InvalidInput("id", "invalid project id"))
		return
	}

	p, err := h.svc.Get(r.Context(), id, user.UserID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondItem(w, p)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := authn.UserFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondAppError(w, h.logger, apperr.InvalidInput("id", "invalid project id"))
		return
	}

	if err := h.svc.Delete(r.Context(), id, user.UserID); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.RespondItem(w, map[string]string{"status": "deleted"})
}
