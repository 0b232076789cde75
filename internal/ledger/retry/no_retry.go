package retry

import (
	"context"
	"time"
)

// NoRetryStrategy makes a single attempt, still bounded by the attempt timeout
type NoRetryStrategy struct {
	attemptTimeout time.Duration
}

// NewNoRetryStrategy creates a new NoRetryStrategy; zero means no attempt timeout
func NewNoRetryStrategy(attemptTimeout time.Duration) *NoRetryStrategy {
	return &NoRetryStrategy{attemptTimeout: attemptTimeout}
}

// Execute runs the operation once
func (s *NoRetryStrategy) Execute(ctx context.Context, operation Operation) error {
	attemptCtx, cancel := attemptContext(ctx, s.attemptTimeout)
	defer cancel()
	return operation(attemptCtx)
}

// Name returns the strategy name
func (s *NoRetryStrategy) Name() string {
	return "NoRetry"
}
