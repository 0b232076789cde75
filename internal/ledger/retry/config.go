package retry

import (
	"fmt"
	"time"
)

// Config tunes how a failed store commit is repeated. The same batch is resent on
// every attempt, so a retry can never skip or reorder versions.
type Config struct {
	Enabled      bool
	MaxRetries   int           // attempts after the first one
	InitialDelay time.Duration // wait before the first retry, doubled each time
	MaxDelay     time.Duration // cap for the doubled wait

	// AttemptTimeout bounds a single commit attempt. Commits ignore shutdown, so
	// without it a hung database would hold the engine forever. Zero disables it.
	AttemptTimeout time.Duration
}

// DefaultConfig returns the commit retry settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		MaxRetries:     3,
		InitialDelay:   time.Second,
		MaxDelay:       10 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Validate rejects settings that would spin or never wait
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("commit retry: max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.InitialDelay <= 0 {
		return fmt.Errorf("commit retry: initial delay must be positive, got %s", c.InitialDelay)
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("commit retry: max delay %s is below initial delay %s", c.MaxDelay, c.InitialDelay)
	}
	if c.AttemptTimeout < 0 {
		return fmt.Errorf("commit retry: attempt timeout must not be negative, got %s", c.AttemptTimeout)
	}
	return nil
}
