package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	retryMaxElapsed      = 15 * time.Second
	retryInitialInterval = 200 * time.Millisecond
	retryMaxInterval     = 3 * time.Second
	retryMaxAttempts     = uint64(4)
)

// IsRetryableError reports whether err is a transient connection, contention or
// resource failure worth another attempt.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) < 2 {
			return false
		}
		switch pgErr.Code[:2] {
		case "08", "40", "53", "57":
			return true
		}
		return pgErr.Code == "55P03"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout")
}

// permanentError marks a failure that must not be retried, such as a rejected mutation.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(retryInitialInterval),
		backoff.WithMaxInterval(retryMaxInterval),
		backoff.WithMaxElapsedTime(retryMaxElapsed),
	)
	return backoff.WithContext(backoff.WithMaxRetries(b, retryMaxAttempts), ctx)
}

func withRetry[T any](ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error
	err := backoff.Retry(func() error {
		var err error
		result, err = op(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			var perm *permanentError
			if errors.As(err, &perm) {
				err = perm.err
			}
			return backoff.Permanent(err)
		}
		lastErr = err
		return err
	}, newBackOff(ctx))
	if err != nil {
		if lastErr != nil && !errors.Is(err, lastErr) {
			return result, fmt.Errorf("after retries: %w", lastErr)
		}
		return result, err
	}
	return result, nil
}

func withRetryNoResult(ctx context.Context, op func(context.Context) error) error {
	_, err := withRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
