package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryerRecoversFromTransientError(t *testing.T) {
	r := NewRetryer(3, time.Millisecond, nil)

	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return driver.ErrBadConn
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryerDoesNotRetryPermanentErrors(t *testing.T) {
	r := NewRetryer(3, time.Millisecond, nil)

	permanent := errors.New("duplicate key value violates unique constraint")
	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestRetryerExhaustsAttempts(t *testing.T) {
	r := NewRetryer(3, time.Millisecond, nil)

	connErr := &pq.Error{Code: "53300", Message: "too many connections"}
	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return fmt.Errorf("create customer: %w", connErr)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, connErr)
	assert.Equal(t, 3, attempts)
}

func TestRetryerStopsOnContextCancel(t *testing.T) {
	r := NewRetryer(5, 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := r.Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return driver.ErrBadConn
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad connection", driver.ErrBadConn, true},
		{"wrapped bad connection", fmt.Errorf("ping: %w", driver.ErrBadConn), true},
		{"connection failure class", &pq.Error{Code: "08006"}, true},
		{"insufficient resources class", &pq.Error{Code: "53300"}, true},
		{"operator intervention class", &pq.Error{Code: "57P01"}, true},
		{"constraint violation", &pq.Error{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}
