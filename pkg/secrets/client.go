// Package secrets wraps the external KV secret store holding agent tokens
// (§4.2). Tokens never live in the persistence database; the client is the
// only component allowed to read or write them.
package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// ErrTokenNotFound is returned by Get when no token exists for a deployment.
var ErrTokenNotFound = fmt.Errorf("secrets: token not found")

// ErrStoreUnavailable wraps any error other than absence when talking to Vault.
type ErrStoreUnavailable struct{ cause error }

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("secret store unavailable: %v", e.cause)
}
func (e *ErrStoreUnavailable) Unwrap() error { return e.cause }

// Client issues, reads, and revokes agent tokens at <prefix>/<deployment_hash>/token,
// matching §6's wire path `PUT|GET|DELETE /v1/<prefix>/<dh>/token`.
type Client struct {
	vc     *vault.Client
	prefix string

	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[string]cacheEntry
}

type cacheEntry struct {
	token   string
	expires time.Time
}

// New builds a Client against a running Vault (or Vault-KV-v1-compatible)
// server at address, authenticated with the root/agent token, using
// pathPrefix as the namespace prefix (e.g. "secret/agent"). cacheTTL governs
// the in-process token cache described in §5 ("secret-store token cache is
// in-memory, per-process, with a small TTL").
func New(address, token, pathPrefix string, cacheTTL time.Duration) (*Client, error) {
	cfg := vault.DefaultConfig()
	cfg.Address = address

	vc, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	vc.SetToken(token)

	return &Client{
		vc:       vc,
		prefix:   pathPrefix,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cacheEntry),
	}, nil
}

func (c *Client) path(deploymentHash string) string {
	return fmt.Sprintf("%s/%s/token", c.prefix, deploymentHash)
}

// Put writes (or overwrites) the agent token for deploymentHash. A failure
// here must abort the surrounding registration transaction (§4.2) — callers
// must not proceed to return the token if Put errors.
func (c *Client) Put(ctx context.Context, deploymentHash, token string) error {
	_, err := c.vc.Logical().WriteWithContext(ctx, c.path(deploymentHash), map[string]any{
		"token":           token,
		"deployment_hash": deploymentHash,
	})
	if err != nil {
		return &ErrStoreUnavailable{cause: err}
	}

	c.mu.Lock()
	c.cache[deploymentHash] = cacheEntry{token: token, expires: time.Now().Add(c.cacheTTL)}
	c.mu.Unlock()

	return nil
}

// Get reads the current agent token for deploymentHash, serving from the
// short-TTL in-process cache when fresh.
func (c *Client) Get(ctx context.Context, deploymentHash string) (string, error) {
	c.mu.Lock()
	if e, ok := c.cache[deploymentHash]; ok && time.Now().Before(e.expires) {
		c.mu.Unlock()
		return e.token, nil
	}
	c.mu.Unlock()

	secret, err := c.vc.Logical().ReadWithContext(ctx, c.path(deploymentHash))
	if err != nil {
		return "", &ErrStoreUnavailable{cause: err}
	}
	if secret == nil || secret.Data == nil {
		return "", ErrTokenNotFound
	}

	token, ok := secret.Data["token"].(string)
	if !ok || token == "" {
		return "", ErrTokenNotFound
	}

	c.mu.Lock()
	c.cache[deploymentHash] = cacheEntry{token: token, expires: time.Now().Add(c.cacheTTL)}
	c.mu.Unlock()

	return token, nil
}

// Ping checks that the secret store is reachable and unsealed, for use by
// the health aggregator (§4.10).
func (c *Client) Ping(ctx context.Context) error {
	health, err := c.vc.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

// Delete best-effort removes the token for deploymentHash on deployment
// teardown. Per §4.2, callers must log-and-continue on failure: the token is
// revoked server-side anyway.
func (c *Client) Delete(ctx context.Context, deploymentHash string) error {
	_, err := c.vc.Logical().DeleteWithContext(ctx, c.path(deploymentHash))

	c.mu.Lock()
	delete(c.cache, deploymentHash)
	c.mu.Unlock()

	if err != nil {
		return &ErrStoreUnavailable{cause: err}
	}
	return nil
}
