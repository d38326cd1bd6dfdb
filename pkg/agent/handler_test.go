package agent

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trydirect/stacker/pkg/authn"
)

func asAgent(r *http.Request) *http.Request {
	id := &authn.Identity{Agent: &authn.Agent{AgentID: uuid.New(), DeploymentHash: "dh1"}}
	return r.WithContext(authn.NewContext(r.Context(), id))
}

func TestHandleRegister_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing deployment_hash", `{"agent_version":"1.0.0"}`, http.StatusUnprocessableEntity},
		{"missing agent_version", `{"deployment_hash":"dh1"}`, http.StatusUnprocessableEntity},
		{"invalid JSON", `{bad}`, http.StatusBadRequest},
	}

	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/agent", h.Routes())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/agent/register", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestHandleHeartbeat_RequiresAgent(t *testing.T) {
	h := NewHandler(nil, nil)

	r := httptest.NewRequest(http.MethodPost, "/agent/heartbeat", strings.NewReader(`{"status":"online"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleHeartbeat(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleHeartbeat_InvalidStatus(t *testing.T) {
	h := NewHandler(nil, nil)

	r := httptest.NewRequest(http.MethodPost, "/agent/heartbeat", strings.NewReader(`{"status":"banana"}`))
	r.Header.Set("Content-Type", "application/json")
	r = asAgent(r)
	w := httptest.NewRecorder()

	h.HandleHeartbeat(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d; body = %s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
	}
}
