// Package webhook implements the outbound marketplace notifier (§4.9):
// signed POST notifications on deployment lifecycle events, using a single
// provider-agnostic HMAC webhook signer.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/trydirect/stacker/internal/retry"
)

const maxRetries = 3

// Event is a deployment lifecycle notification payload.
type Event struct {
	DeploymentHash string    `json:"deployment_hash"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Notifier sends signed outbound webhook notifications.
type Notifier interface {
	Notify(ctx context.Context, url, secret string, ev Event) error
}

// HTTPNotifier signs and POSTs events to subscriber-supplied URLs.
type HTTPNotifier struct {
	http *http.Client
	cb   *gobreaker.CircuitBreaker
}

var _ Notifier = (*HTTPNotifier)(nil)

// New constructs an HTTPNotifier.
func New() *HTTPNotifier {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook-connector",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &HTTPNotifier{http: &http.Client{Timeout: 10 * time.Second}, cb: cb}
}

// sign computes the HMAC-SHA256 signature of body under secret.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notify POSTs ev to url, signed with secret in the X-Webhook-Signature
// header, retrying transient failures through the circuit breaker.
func (n *HTTPNotifier) Notify(ctx context.Context, url, secret string, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling webhook event: %w", err)
	}
	signature := sign(secret, body)

	_, err = n.cb.Execute(func() (any, error) {
		return nil, retry.Do(ctx, maxRetries, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Webhook-Signature", signature)

			resp, err := n.http.Do(req)
			if err != nil {
				return retry.MarkRetryable(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				return retry.MarkRetryable(fmt.Errorf("webhook subscriber %d", resp.StatusCode))
			}
			if resp.StatusCode >= 400 {
				return fmt.Errorf("webhook subscriber %d", resp.StatusCode)
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("notifying webhook: %w", err)
	}
	return nil
}
