package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Retryer wraps store operations with bounded exponential backoff. Only
// transient connectivity failures are retried; every other error is returned
// on the first attempt so real failures are never masked as timeouts.
type Retryer struct {
	maxAttempts uint64
	baseDelay   time.Duration
	log         *logrus.Entry
}

func NewRetryer(maxAttempts int, baseDelay time.Duration, log *logrus.Entry) *Retryer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Retryer{maxAttempts: uint64(maxAttempts), baseDelay: baseDelay, log: log}
}

// Do runs op, retrying transient failures with the base delay doubling
// between attempts. The last error is returned once attempts are exhausted.
func (r *Retryer) Do(ctx context.Context, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.baseDelay
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		r.log.WithError(err).WithField("attempt", attempt).Warn("transient store error, retrying")
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, r.maxAttempts-1), ctx))
}

// IsTransient classifies connectivity-level failures: a bad connection from
// the driver, or Postgres error classes 08 (connection exception), 53
// (insufficient resources, including connection-pool exhaustion) and 57
// (operator intervention, e.g. shutdown).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return true
		}
	}
	return false
}
