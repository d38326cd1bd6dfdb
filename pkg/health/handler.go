package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trydirect/stacker/internal/httpserver"
)

// Handler exposes the aggregator over HTTP.
type Handler struct {
	aggregator *Aggregator
	latest     *Latest
}

// NewHandler builds a Handler over aggregator, keeping a Latest report for
// the /health_check/metrics endpoint.
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator, latest: &Latest{}}
}

// Routes mounts the unauthenticated health endpoints (§6).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleCheck)
	r.Get("/metrics", h.handleMetrics)
	return r
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	report := h.aggregator.Check(r.Context())
	h.latest.Set(report)

	status := http.StatusOK
	envStatus := "OK"
	if report.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
		envStatus = "Error"
	}
	httpserver.Respond(w, status, httpserver.Envelope{Status: envStatus, Item: report})
}

// handleMetrics returns the latencies from the most recent check without
// re-probing, so scraping it doesn't itself generate load on dependencies.
func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	httpserver.RespondItem(w, h.latest.Get().Components)
}
