package retry

import (
	"context"
	"errors"
	"testing"
)

func TestDo_StopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	want := errors.New("permanent failure")

	err := Do(context.Background(), 5, func() error {
		calls++
		return want
	})

	if !errors.Is(err, want) {
		t.Errorf("Do() error = %v, want %v", err, want)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1 for a non-retryable error", calls)
	}
}

func TestDo_RetriesRetryableErrorsUpToMaxAttempts(t *testing.T) {
	calls := 0

	err := Do(context.Background(), 3, func() error {
		calls++
		return MarkRetryable(errors.New("transient"))
	})

	if err == nil {
		t.Fatal("Do() error = nil, want non-nil after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3 (maxAttempts)", calls)
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0

	err := Do(context.Background(), 5, func() error {
		calls++
		if calls < 3 {
			return MarkRetryable(errors.New("transient"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestMarkRetryable_NilStaysNil(t *testing.T) {
	if err := MarkRetryable(nil); err != nil {
		t.Errorf("MarkRetryable(nil) = %v, want nil", err)
	}
}
