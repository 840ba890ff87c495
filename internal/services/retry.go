package services

import (
	"context"
	"errors"
	"time"
)

// shouldRetry decides whether an idempotent read is worth another attempt.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Temporary()
	}
	return false
}

// withRetry runs fn up to attempts+1 times, sleeping delay between tries while the error stays retryable.
func (s *JobService) withRetry(ctx context.Context, op string, attempts int, fn func() error) error {
	var err error
	for try := 0; ; try++ {
		err = fn()
		if err == nil || try >= attempts || !shouldRetry(err) {
			return err
		}

		s.logger.Warn("retrying request", "op", op, "attempt", try+1, "of", attempts, "error", err)
		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
