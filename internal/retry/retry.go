// internal/retry/retry.go

// Package retry implements bounded retry with exponential backoff for
// transient collaborator failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMaxAttemptsExceeded is returned when all attempts have failed.
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

// Config controls retry behavior.
type Config struct {
	// MaxAttempts includes the initial attempt.
	MaxAttempts int

	// InitialDelay before the first retry; doubles each attempt up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// IsRetryable reports whether an error is worth retrying. Nil retries
	// everything.
	IsRetryable func(error) bool
}

// DefaultConfig returns the retry policy used for market and content fetches.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// Do executes fn until it succeeds, the attempts run out, or ctx is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if cfg.IsRetryable != nil && !cfg.IsRetryable(lastErr) {
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, cfg.MaxAttempts, lastErr)
}
