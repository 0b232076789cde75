package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FixedIntervalStrategy retries every error after the same delay. It is used for
// establishing the ledger connection, where any failure is worth another attempt.
// A negative maxRetries retries until the context is cancelled.
type FixedIntervalStrategy struct {
	maxRetries int
	interval   time.Duration
}

// NewFixedIntervalStrategy creates a new FixedIntervalStrategy
func NewFixedIntervalStrategy(maxRetries int, interval time.Duration) *FixedIntervalStrategy {
	return &FixedIntervalStrategy{
		maxRetries: maxRetries,
		interval:   interval,
	}
}

// Execute runs the operation until it succeeds, retries run out or ctx is done
func (s *FixedIntervalStrategy) Execute(ctx context.Context, operation Operation) error {
	var lastErr error

	for attempt := 0; s.maxRetries < 0 || attempt <= s.maxRetries; attempt++ {
		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				slog.Info("Operation succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}
		lastErr = err

		if s.maxRetries >= 0 && attempt >= s.maxRetries {
			break
		}

		slog.Warn("Operation failed, retrying",
			"attempt", attempt+1,
			"retry_in_seconds", s.interval.Seconds(),
			"error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(s.interval):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", s.maxRetries+1, lastErr)
}

// Name returns the strategy name
func (s *FixedIntervalStrategy) Name() string {
	return "FixedInterval"
}
