package fault

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs op until it succeeds, returns a non-retryable error, ctx is done,
// or maxAttempts is exhausted. The core never calls this itself; it exists for
// callers that own the retry policy.
func Retry(ctx context.Context, maxAttempts int, op func(context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 20 * time.Millisecond
	eb.MaxInterval = 500 * time.Millisecond
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxAttempts-1)), ctx)

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
