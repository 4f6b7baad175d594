package models

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultRetryBackoff = 500 * time.Millisecond

// RetryingModel wraps a VisionModel and retries failed calls with exponential backoff
type RetryingModel struct {
	inner      VisionModel
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// WithRetry wraps inner so that each Describe makes at most 1+maxRetries attempts
func WithRetry(inner VisionModel, maxRetries int, backoff time.Duration, logger *zap.Logger) *RetryingModel {
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingModel{
		inner:      inner,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// Describe calls the wrapped model until it succeeds, retries are exhausted or ctx ends.
// A failed attempt is retried even when it hit its own per-call timeout; only the end of
// ctx stops the loop early.
func (r *RetryingModel) Describe(ctx context.Context, p Prompt) (string, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff << (attempt - 1)
			r.logger.Warn("Retrying model call",
				zap.String("model", r.inner.Name()),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		attempts++
		text, err := r.inner.Describe(ctx, p)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("model call failed after %d attempt(s): %w", attempts, lastErr)
}

// Name returns the wrapped model's name
func (r *RetryingModel) Name() string {
	return r.inner.Name()
}
