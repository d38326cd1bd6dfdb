// Package registry implements the image-registry catalog connector (§4.9):
// read-only namespace/repository/tag lookups, Redis-cached per
// {kind, scope, query} with a TTL per kind.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/trydirect/stacker/internal/retry"
)

// Kind enumerates the catalog query shapes, each with its own cache TTL —
// namespaces change rarely, tags churn fast.
type Kind string

const (
	KindNamespaces   Kind = "namespaces"
	KindRepositories Kind = "repositories"
	KindTags         Kind = "tags"
)

// ttlFor returns the cache lifetime for a given Kind (§4.9: "TTLs per kind").
func ttlFor(k Kind) time.Duration {
	switch k {
	case KindNamespaces:
		return 30 * time.Minute
	case KindRepositories:
		return 10 * time.Minute
	case KindTags:
		return time.Minute
	default:
		return time.Minute
	}
}

const maxRetries = 3

// Client is a thin HTTP client to an image-registry catalog (e.g. a
// Docker-Hub-compatible API), with a Redis read cache and a circuit breaker
// guarding the upstream.
type Client interface {
	Namespaces(ctx context.Context, scope string) ([]string, error)
	Repositories(ctx context.Context, scope, namespace string) ([]string, error)
	Tags(ctx context.Context, scope, namespace, repository string) ([]string, error)
	Ping(ctx context.Context) error
}

// HTTPClient calls a real registry catalog endpoint over HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	rdb     *redis.Client
	cb      *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// New constructs an HTTPClient against baseURL, caching responses in rdb.
var _ Client = (*HTTPClient)(nil)

func New(baseURL string, rdb *redis.Client, logger *slog.Logger) *HTTPClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "registry-connector",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		rdb:     rdb,
		cb:      cb,
		logger:  logger,
	}
}

func cacheKey(kind Kind, scope, query string) string {
	return fmt.Sprintf("registry:%s:%s:%s", kind, scope, query)
}

// fetch serves query from Redis if present, otherwise calls the upstream
// through the circuit breaker with retry, and populates the cache.
func (c *HTTPClient) fetch(ctx context.Context, kind Kind, scope, query, path string) ([]string, error) {
	key := cacheKey(kind, scope, query)

	if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var out []string
		if jsonErr := json.Unmarshal(cached, &out); jsonErr == nil {
			return out, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("registry cache lookup failed", "error", err, "key", key)
	}

	result, err := c.cb.Execute(func() (any, error) {
		var b []byte
		err := retry.Do(ctx, maxRetries, func() error {
			resp, err := c.http.Get(c.baseURL + path)
			if err != nil {
				return retry.MarkRetryable(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				return retry.MarkRetryable(fmt.Errorf("registry upstream %d", resp.StatusCode))
			}
			if resp.StatusCode >= 400 {
				return fmt.Errorf("registry upstream %d", resp.StatusCode)
			}

			b, err = io.ReadAll(resp.Body)
			return err
		})
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	body, _ := result.([]byte)

	var out []string
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding registry response: %w", err)
	}

	payload, _ := json.Marshal(out)
	if err := c.rdb.Set(ctx, key, payload, ttlFor(kind)).Err(); err != nil {
		c.logger.Warn("registry cache write failed", "error", err, "key", key)
	}

	return out, nil
}

func (c *HTTPClient) Namespaces(ctx context.Context, scope string) ([]string, error) {
	return c.fetch(ctx, KindNamespaces, scope, "", "/v2/_catalog?scope="+scope)
}

func (c *HTTPClient) Repositories(ctx context.Context, scope, namespace string) ([]string, error) {
	return c.fetch(ctx, KindRepositories, scope, namespace, "/v2/"+namespace+"/_repositories")
}

func (c *HTTPClient) Tags(ctx context.Context, scope, namespace, repository string) ([]string, error) {
	return c.fetch(ctx, KindTags, scope, namespace+"/"+repository, "/v2/"+namespace+"/"+repository+"/tags/list")
}

// Ping checks the registry's base endpoint, used by the health aggregator
// (§4.10). It bypasses the cache and circuit breaker: a health probe must
// observe the upstream directly.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("registry upstream %d", resp.StatusCode)
	}
	return nil
}
