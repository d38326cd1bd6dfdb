package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/trydirect/stacker/internal/apperr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, err string, message string) {
	Respond(w, status, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

// RespondAppError writes the HTTP response for an apperr.Error as a §6
// envelope, mapping its Kind to a status code. Non-apperr errors are logged
// and surfaced as a generic 500 so internal details never leak to the client.
func RespondAppError(w http.ResponseWriter, logger *slog.Logger, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		logger.Error("unhandled error", "error", err)
		RespondEnvelopeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if ae.Kind == apperr.KindInternal {
		logger.Error("internal error", "error", err)
	}

	Respond(w, ae.Status(), Envelope{Status: "Error", Msg: ae.Message})
}
