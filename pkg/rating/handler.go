package rating

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trydirect/stacker/internal/httpserver"
	"github.com/trydirect/stacker/pkg/authn"
)

// Handler provides HTTP handlers for deployment rating submission.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler builds a rating Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the rating endpoints under a /{deployment_hash}/ratings prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", authn.RequireUser(h.handleSubmit))
	r.Get("/", authn.RequireUser(h.handleList))
	return r
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	dh := chi.URLParam(r, "deployment_hash")
	user := authn.UserFromContext(r.Context())

	var req SubmitRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	rt, err := h.svc.Submit(r.Context(), dh, user.UserID, req)
	if err != nil {
		h.logger.Error("submitting rating", "error", err, "deployment_hash", dh)
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.RespondItem(w, rt)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	dh := chi.URLParam(r, "deployment_hash")
	ratings, err := h.svc.List(r.Context(), dh)
	if err != nil {
		h.logger.Error("listing ratings", "error", err, "deployment_hash", dh)
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.RespondList(w, ratings, nil)
}
