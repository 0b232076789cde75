package retry

import (
	"context"
	"log/slog"
	"time"
)

// Strategy defines the interface for retry strategies
type Strategy interface {
	// Execute runs the operation with the configured retry logic
	Execute(ctx context.Context, operation Operation) error

	// Name returns the name of the strategy for logging
	Name() string
}

// Operation is one attempt. It receives a context that may carry a per-attempt
// deadline and must use it for every blocking call.
type Operation func(ctx context.Context) error

// NewCommitStrategy creates the store commit strategy based on configuration
func NewCommitStrategy(config Config) Strategy {
	if !config.Enabled {
		slog.Info("Commit retry disabled, using NoRetryStrategy",
			"attempt_timeout", config.AttemptTimeout)
		return NewNoRetryStrategy(config.AttemptTimeout)
	}

	slog.Info("Commit retry enabled, using ExponentialBackoffStrategy",
		"max_retries", config.MaxRetries,
		"initial_delay_sec", config.InitialDelay.Seconds(),
		"max_delay_sec", config.MaxDelay.Seconds(),
		"attempt_timeout", config.AttemptTimeout,
	)

	return NewExponentialBackoffStrategy(config, IsRetryableCommitError)
}

func attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
