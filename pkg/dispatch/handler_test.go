package dispatch

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trydirect/stacker/pkg/authn"
)

func TestHandleWait_RequiresAgent(t *testing.T) {
	h := NewHandler(nil, time.Second, 100*time.Millisecond, nil)
	router := chi.NewRouter()
	h.MountRoutes(router)

	r := httptest.NewRequest(http.MethodGet, "/wait/dh1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleWait_RejectsMismatchedDeployment(t *testing.T) {
	h := NewHandler(nil, time.Second, 100*time.Millisecond, nil)
	router := chi.NewRouter()
	h.MountRoutes(router)

	ag := &authn.Agent{AgentID: uuid.New(), DeploymentHash: "dh-other"}
	id := &authn.Identity{Agent: ag}

	r := httptest.NewRequest(http.MethodGet, "/wait/dh1", nil)
	r = r.WithContext(authn.NewContext(r.Context(), id))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
