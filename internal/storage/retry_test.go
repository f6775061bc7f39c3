package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", ErrNotFound, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"reset", errors.New("read tcp: connection reset by peer"), true},
		{"permanent", permanent(&pgconn.PgError{Code: "40001"}), false},
		{"other", errors.New("syntax"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryableError(tc.err))
		})
	}
}

func TestWithRetryRetriesTransientErrors(t *testing.T) {
	attempts := 0
	got, err := withRetry(context.Background(), func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, &pgconn.PgError{Code: "40P01"}
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	boom := errors.New("mutation rejected")
	attempts := 0
	err := withRetryNoResult(context.Background(), func(context.Context) error {
		attempts++
		return permanent(boom)
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}
