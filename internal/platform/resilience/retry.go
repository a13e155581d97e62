package resilience

import (
	"context"
	"fmt"
	"time"
)

type RetryConfig struct {
	// MaxAttempts counts the first call.
	MaxAttempts int
	// BaseDelay scales a quadratic backoff: attempt n waits BaseDelay*n².
	BaseDelay time.Duration
	OnRetry   func(attempt int, err error)
}

// Retry calls fn until it succeeds, attempts run out or ctx ends.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		timer := time.NewTimer(cfg.BaseDelay * time.Duration(attempt*attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		}
	}
	return lastErr
}
