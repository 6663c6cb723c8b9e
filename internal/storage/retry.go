package storage

import (
	"context"
	"errors"
	"time"
)

// ReadAttempts caps how many times a read is attempted. Mutations are
// never retried here: re-issuing a write after an ambiguous failure
// could apply it twice.
const ReadAttempts = 2

const retryBaseDelay = 100 * time.Millisecond

// Retryable reports whether an error is worth a retry. Domain errors
// (not found, conflict, unsupported) are definitive answers from the
// store, not transport failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrUnsupported) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Read runs fn up to ReadAttempts times with exponential backoff,
// returning the first success or the last error.
func Read[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for attempt := 0; attempt < ReadAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}
		result, err = fn(ctx)
		if err == nil || !Retryable(err) {
			return result, err
		}
	}
	return result, err
}
