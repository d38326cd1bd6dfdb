package command

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/trydirect/stacker/pkg/authn"
)

func asUser(r *http.Request, userID string) *http.Request {
	id := &authn.Identity{User: &authn.User{UserID: userID}}
	return r.WithContext(authn.NewContext(r.Context(), id))
}

func TestHandleCreate_RejectsUnauthenticated(t *testing.T) {
	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/commands", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/commands", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing deployment_hash", `{"command_type":"restart","priority":"normal"}`, http.StatusUnprocessableEntity},
		{"missing command_type", `{"deployment_hash":"dh1","priority":"normal"}`, http.StatusUnprocessableEntity},
		{"invalid priority", `{"deployment_hash":"dh1","command_type":"restart","priority":"urgent"}`, http.StatusUnprocessableEntity},
		{"invalid JSON", `{bad}`, http.StatusBadRequest},
	}

	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/commands", h.Routes())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/commands", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			r = asUser(r, "user-1")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestHandleCancel_InvalidCommandID(t *testing.T) {
	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/commands", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/commands/not-a-uuid/cancel", nil)
	r = asUser(r, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code == http.StatusOK {
		t.Errorf("status = %d, want a non-2xx status for an invalid command id", w.Code)
	}
}

func TestHandleReportResult_RequiresAgent(t *testing.T) {
	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	h.MountAgentRoutes(router)

	r := httptest.NewRequest(http.MethodPost, "/report", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
