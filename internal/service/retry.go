package service

import (
	"context"
	"time"

	"membership-ledger-be/internal/entity"

	"github.com/cenkalti/backoff/v5"
)

// RetryOnConflict runs op until it succeeds, fails with a non-retryable error,
// or has been attempted maxAttempts times. Only entity.ErrConcurrencyConflict is retried.
func RetryOnConflict[T any](ctx context.Context, maxAttempts int, op func() (T, error)) (T, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	return backoff.Retry(ctx, func() (T, error) {
		res, err := op()
		if err != nil && !entity.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxAttempts)),
	)
}
