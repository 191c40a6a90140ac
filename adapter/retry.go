package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// permanentError stops Retry without further attempts.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls op up to 1+retries times, sleeping Backoff(base, i) before
// attempt i. It stops early on success, on a Permanent error, or when ctx
// is done.
func Retry(ctx context.Context, retries int, base time.Duration, op func(context.Context) error) error {
	attempts := 1 + retries
	var lastErr error
	for i := range attempts {
		if i > 0 {
			timer := time.NewTimer(Backoff(base, i))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("canceled during backoff: %w", ctx.Err())
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("non-retriable error: %w", perm.err)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
