package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trydirect/stacker/internal/httpserver"
)

// Handler provides the read-side HTTP handler for the audit log.
type Handler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHandler creates an audit log Handler.
func NewHandler(pool *pgxpool.Pool, logger *slog.Logger) *Handler {
	return &Handler{pool: pool, logger: logger}
}

// Routes returns a chi.Router with audit log routes mounted under a
// deployment-scoped path.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{deployment_hash}", h.handleList)
	return r
}

type auditEntryResponse struct {
	Actor          string    `json:"actor"`
	DeploymentHash string    `json:"deployment_hash"`
	Action         string    `json:"action"`
	Outcome        string    `json:"outcome"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	dh := chi.URLParam(r, "deployment_hash")

	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	rows, err := h.pool.Query(r.Context(), `
		SELECT actor, deployment_hash, action, outcome, created_at
		FROM audit_event
		WHERE deployment_hash = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, dh, params.PageSize, params.Offset)
	if err != nil {
		h.logger.Error("listing audit log", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
		return
	}
	defer rows.Close()

	var entries []auditEntryResponse
	for rows.Next() {
		var e auditEntryResponse
		if err := rows.Scan(&e.Actor, &e.DeploymentHash, &e.Action, &e.Outcome, &e.CreatedAt); err != nil {
			h.logger.Error("scanning audit log row", "error", err)
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
			return
		}
		entries = append(entries, e)
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"_status": "OK",
		"list":    entries,
	})
}
