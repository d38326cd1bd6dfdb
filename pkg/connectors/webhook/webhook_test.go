package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPNotifier_SignsBody(t *testing.T) {
	secret := "s3cr3t"
	var gotSig, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New()
	ev := Event{DeploymentHash: "dh1", Status: "completed", OccurredAt: time.Unix(0, 0).UTC()}
	if err := n.Notify(t.Context(), srv.URL, secret, ev); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	body, _ := json.Marshal(ev)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	if gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
	if gotBody != string(body) {
		t.Errorf("body = %q, want %q", gotBody, string(body))
	}
}

func TestMock_RecordsNotifications(t *testing.T) {
	m := &Mock{}
	ev := Event{DeploymentHash: "dh1", Status: "failed"}
	if err := m.Notify(t.Context(), "http://example.invalid", "secret", ev); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(m.Sent) != 1 || m.Sent[0].DeploymentHash != "dh1" {
		t.Errorf("Sent = %+v, want one event for dh1", m.Sent)
	}
}
