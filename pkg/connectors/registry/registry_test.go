package registry

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T, upstream *httptest.Server) *HTTPClient {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(upstream.URL, rdb, slog.Default())
}

func TestNamespaces_CachesUpstreamResponse(t *testing.T) {
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode([]string{"acme"})
	}))
	defer upstream.Close()

	c := newTestClient(t, upstream)
	ctx := t.Context()

	got, err := c.Namespaces(ctx, "scope1")
	if err != nil {
		t.Fatalf("Namespaces: %v", err)
	}
	if len(got) != 1 || got[0] != "acme" {
		t.Fatalf("Namespaces = %v, want [acme]", got)
	}

	if _, err := c.Namespaces(ctx, "scope1"); err != nil {
		t.Fatalf("Namespaces (cached): %v", err)
	}

	if calls != 1 {
		t.Errorf("upstream called %d times, want 1 (second call should be served from cache)", calls)
	}
}

func TestPing_BypassesCache(t *testing.T) {
	pings := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/" {
			pings++
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	c := newTestClient(t, upstream)

	if err := c.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := c.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if pings != 2 {
		t.Errorf("upstream pinged %d times, want 2 (Ping must not be cached)", pings)
	}
}

func TestPing_UpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	c := newTestClient(t, upstream)

	if err := c.Ping(t.Context()); err == nil {
		t.Error("Ping() error = nil, want non-nil for a 5xx upstream")
	}
}
