package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExponentialBackoffStrategy resends an operation while its errors are retryable,
// doubling the wait between attempts up to maxDelay
type ExponentialBackoffStrategy struct {
	maxRetries     int
	initialDelay   time.Duration
	maxDelay       time.Duration
	attemptTimeout time.Duration
	retryable      func(error) bool
}

// NewExponentialBackoffStrategy creates a new ExponentialBackoffStrategy. A nil
// retryable treats every error as final.
func NewExponentialBackoffStrategy(config Config, retryable func(error) bool) *ExponentialBackoffStrategy {
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	return &ExponentialBackoffStrategy{
		maxRetries:     config.MaxRetries,
		initialDelay:   config.InitialDelay,
		maxDelay:       config.MaxDelay,
		attemptTimeout: config.AttemptTimeout,
		retryable:      retryable,
	}
}

// Execute runs the operation with exponential backoff retry logic
func (s *ExponentialBackoffStrategy) Execute(ctx context.Context, operation Operation) error {
	var lastErr error
	delay := s.initialDelay

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		attemptCtx, cancel := attemptContext(ctx, s.attemptTimeout)
		err := operation(attemptCtx)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil {
			if attempt > 0 {
				slog.Info("Commit succeeded after retry",
					"attempt", attempt+1,
					"total_attempts", s.maxRetries+1)
			}
			return nil
		}

		lastErr = err
		if timedOut && ctx.Err() == nil {
			lastErr = fmt.Errorf("attempt timed out after %s: %w: %w", s.attemptTimeout, context.DeadlineExceeded, err)
		}

		if !s.retryable(lastErr) {
			slog.Error("Commit failed with a final error",
				"error", err,
				"attempt", attempt+1)
			return lastErr
		}

		if attempt >= s.maxRetries {
			break
		}

		slog.Warn("Commit failed, retrying with exponential backoff",
			"attempt", attempt+1,
			"max_attempts", s.maxRetries+1,
			"retry_in_seconds", delay.Seconds(),
			"error", lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay *= 2
			if delay > s.maxDelay {
				delay = s.maxDelay
			}
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", s.maxRetries+1, lastErr)
}

// Name returns the strategy name
func (s *ExponentialBackoffStrategy) Name() string {
	return "ExponentialBackoff"
}
