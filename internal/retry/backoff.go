// Package retry provides the shared exponential-backoff retry helper used
// by the secret manager, message bus, and external service connectors
// (§7: "transient dependency errors are retried inside the component up to
// N_retry with exponential backoff before bubbling up").
package retry

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"
)

// Retryable marks an error as transient and worth retrying. Connectors wrap
// their transport errors in this before returning them from the operation
// passed to Do; anything not wrapped is treated as permanent and returned
// immediately.
type Retryable struct{ err error }

func (r Retryable) Error() string { return r.err.Error() }
func (r Retryable) Unwrap() error { return r.err }

// MarkRetryable wraps err so Do will retry the operation that produced it.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return Retryable{err: err}
}

// Do runs op up to maxAttempts times with exponential backoff, retrying only
// while op returns a Retryable error. A non-retryable error or a nil error
// stops the loop immediately.
func Do(ctx context.Context, maxAttempts int, op func() error) error {
	b := backoff.NewExponentialBackOff()

	attempt := 0
	wrapped := func() (struct{}, error) {
		attempt++
		err := op()
		if err == nil {
			return struct{}{}, nil
		}
		var r Retryable
		if errors.As(err, &r) && attempt < maxAttempts {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, wrapped, backoff.WithBackOff(b), backoff.WithMaxTries(uint(maxAttempts)))
	return err
}
