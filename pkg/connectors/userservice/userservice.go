// Package userservice implements the user-service connector (§4.9): plans,
// products, and categories, including the plan hierarchy check
// (`enterprise > professional > basic`) exposed as Satisfies. No code in
// this repository calls Satisfies outside its test.
package userservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/trydirect/stacker/internal/retry"
)

// Plan is a subscription tier, ordered from lowest to highest.
type Plan string

const (
	PlanBasic        Plan = "basic"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

var planRank = map[Plan]int{
	PlanBasic:        0,
	PlanProfessional: 1,
	PlanEnterprise:   2,
}

// Satisfies reports whether actual meets or exceeds required in the plan
// hierarchy (`enterprise > professional > basic`).
func Satisfies(actual, required Plan) bool {
	return planRank[actual] >= planRank[required]
}

const maxRetries = 3

// Client looks up a user's current plan and the product catalog.
type Client interface {
	PlanForUser(ctx context.Context, userID string) (Plan, error)
	Products(ctx context.Context, category string) ([]string, error)
	Ping(ctx context.Context) error
}

// HTTPClient calls the real user-service HTTP API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
}

var _ Client = (*HTTPClient)(nil)

// New constructs an HTTPClient against baseURL.
func New(baseURL string) *HTTPClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "userservice-connector",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &HTTPClient{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}, cb: cb}
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	result, err := c.cb.Execute(func() (any, error) {
		var b []byte
		err := retry.Do(ctx, maxRetries, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
			if err != nil {
				return err
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return retry.MarkRetryable(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				return retry.MarkRetryable(fmt.Errorf("user-service upstream %d", resp.StatusCode))
			}
			if resp.StatusCode >= 400 {
				return fmt.Errorf("user-service upstream %d", resp.StatusCode)
			}

			b, err = io.ReadAll(resp.Body)
			return err
		})
		return b, err
	})
	if err != nil {
		return fmt.Errorf("calling user-service %s: %w", path, err)
	}
	body, _ := result.([]byte)
	return json.Unmarshal(body, out)
}

// PlanForUser returns the user's current subscription plan.
func (c *HTTPClient) PlanForUser(ctx context.Context, userID string) (Plan, error) {
	var resp struct {
		Plan Plan `json:"plan"`
	}
	if err := c.get(ctx, "/users/"+userID+"/plan", &resp); err != nil {
		return "", err
	}
	return resp.Plan, nil
}

// Products returns the product catalog for a category.
func (c *HTTPClient) Products(ctx context.Context, category string) ([]string, error) {
	var out []string
	if err := c.get(ctx, "/products?category="+category, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks the user-service's reachability, used by the health aggregator
// (§4.10). It bypasses the circuit breaker so a probe always observes live
// upstream state.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("user-service upstream %d", resp.StatusCode)
	}
	return nil
}
