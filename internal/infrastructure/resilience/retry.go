package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	domainerrors "github.com/quokkaops/answer-bridge/internal/domain/errors"
)

// RetryPolicy defines the configuration for exponential backoff retry logic.
type RetryPolicy struct {
	InitialBackoff time.Duration // Delay before the first retry
	Multiplier     float64       // Multiplier for exponential backoff
	MaxBackoff     time.Duration // Cap on the delay between retries
	MaxAttempts    int           // Total invocation attempts, including the first

	// Retryable decides whether an error is worth another attempt.
	// When nil, DefaultRetryable is used.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns a RetryPolicy configured with standard
// exponential backoff parameters: 100ms initial, 2x multiplier, 5s cap,
// 3 attempts.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		InitialBackoff: 100 * time.Millisecond,
		Multiplier:     2.0,
		MaxBackoff:     5 * time.Second,
		MaxAttempts:    3,
	}
}

// WithPredicate returns a copy of the policy using the given retry predicate.
func (r *RetryPolicy) WithPredicate(pred func(error) bool) *RetryPolicy {
	cp := *r
	cp.Retryable = pred
	return &cp
}

// Do executes the provided operation with exponential backoff retry
// logic. It retries while the predicate approves the error and attempts
// remain, sleeping InitialBackoff * Multiplier^(attempt-1) between
// attempts, and respects context cancellation during the sleeps.
// Exhausting attempts propagates the last error.
func (r *RetryPolicy) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	pred := r.Retryable
	if pred == nil {
		pred = DefaultRetryable
	}

	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !pred(err) {
			return fmt.Errorf("non-retryable error: %w", err)
		}

		if attempt == attempts {
			break
		}

		delay := r.backoff(attempt)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

// backoff computes the delay after the given 1-based attempt.
func (r *RetryPolicy) backoff(attempt int) time.Duration {
	delay := float64(r.InitialBackoff)
	for i := 1; i < attempt; i++ {
		delay *= r.Multiplier
	}

	if r.MaxBackoff > 0 && time.Duration(delay) > r.MaxBackoff {
		return r.MaxBackoff
	}
	return time.Duration(delay)
}

// DefaultRetryable determines if an error should trigger a retry attempt.
// Retryable: transient domain errors, network errors, 429 rate limits
// and 5xx server errors. Non-retryable: permanent domain errors, other
// 4xx client errors and context cancellation.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}

	// An explicit classification wins. A per-attempt timeout surfaces as
	// context.DeadlineExceeded wrapped in a TransientError, and that call
	// is still worth retrying with a fresh deadline.
	if domainerrors.IsTransient(err) {
		return true
	}
	if domainerrors.IsPermanent(err) {
		return false
	}

	// Never retry an unclassified cancelled or expired call.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())

	// HTTP 5xx and 429 surface as text from the Slack SDK.
	if containsAny(msg, []string{"429", "too many requests", "rate limit"}) {
		return true
	}
	if containsAny(msg, []string{"502", "503", "504", "internal server error", "bad gateway", "service unavailable", "gateway timeout"}) {
		return true
	}

	if containsAny(msg, []string{"connection refused", "connection reset", "no route to host", "network unreachable", "eof"}) {
		return true
	}

	// Remaining 4xx client errors indicate the request itself is wrong.
	return false
}

// containsAny checks if the string contains any of the given substrings.
func containsAny(s string, substrings []string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
