package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/jobhound/internal/model"
)

// Completer is the LLM call being retried.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RetryCompleter is a decorator that retries transient failures with exponential
// backoff and jitter before delegating to the wrapped Completer.
type RetryCompleter struct {
	inner      Completer
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewRetryCompleter wraps a Completer with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewRetryCompleter(inner Completer, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryCompleter {
	return &RetryCompleter{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// Complete calls the wrapped completer, retrying on transient errors.
func (c *RetryCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.inner.Complete(ctx, prompt)
	if err == nil {
		return out, nil
	}
	if !IsRetryable(err) {
		return "", err
	}

	lastErr := err
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		delay := c.backoffDelay(attempt, lastErr)

		c.logger.Warn("retrying llm call after transient error",
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		out, err = c.inner.Complete(ctx, prompt)
		if err == nil {
			return out, nil
		}
		if !IsRetryable(err) {
			return "", err
		}
		lastErr = err
	}

	return "", lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// A Retry-After hint on a 429 takes precedence.
func (c *RetryCompleter) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// IsRetryable reports whether err is a transient failure worth retrying:
// 429, 5xx, and non-HTTP (network) errors. Context errors never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	return true
}
