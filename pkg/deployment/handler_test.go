package deployment

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

func TestHandleSubmit_RejectsUnauthenticated(t *testing.T) {
	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/deployments", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/deployments", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestHandleSubmit_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing project_id", `{"metadata":{}}`, http.StatusUnprocessableEntity},
		{"invalid JSON", `{bad}`, http.StatusBadRequest},
	}

	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/deployments", h.Routes())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/deployments", strings.NewReader(tt.body))
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

func TestHandleLatestForProject_RejectsUnauthenticated(t *testing.T) {
	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/deployments", h.Routes())

	r := httptest.NewRequest(http.MethodGet, "/deployments/project/p1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestHandleTeardown_RejectsUnauthenticated(t *testing.T) {
	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/deployments", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/deployments/dh1/teardown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
