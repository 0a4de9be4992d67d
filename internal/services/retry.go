package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/desertthunder/crowdq/internal/shared"
)

// Retry calls fn up to attempts times, waiting a constant interval between tries, while the
// error is [shared.IsRetryable]. Any other error, or ctx ending, stops immediately.
func Retry[T any](ctx context.Context, attempts int, interval time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}
	op := func() (T, error) {
		out, err := fn(ctx)
		if err != nil && !shared.IsRetryable(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(uint(attempts)),
	)
}
