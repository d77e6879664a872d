package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. CallWithRetry returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// CallWithRetry calls a function, retrying up to maxAttempts times if it returns an error.
// It stops early when ctx is done or fn returns an error wrapped with Permanent.
// If after maxAttempts the function still returns an error, it returns the zero value of T and the last error.
func CallWithRetry[T any](ctx context.Context, fn func() (T, error), maxAttempts int, backoff time.Duration) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for i := 0; i < maxAttempts; i++ {
		var t T
		t, err = fn()
		if err == nil {
			return t, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}

		if i == maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry aborted after %d attempts: %w", i+1, errors.Join(err, ctx.Err()))
		case <-time.After(backoff):
		}
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", maxAttempts, err)
}
