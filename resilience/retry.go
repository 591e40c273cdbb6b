// ABOUTME: Exponential-backoff retry wrapper for fallible operations
// ABOUTME: Deterministic delays, per-attempt logging, original error preserved on exhaustion
package resilience

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"
)

// RetryPolicy configures a retry loop.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// IsRetryable decides whether a failure may be attempted again.
	// A nil classifier retries every error.
	IsRetryable func(error) bool
}

// Delay returns the wait scheduled after the given 1-indexed attempt fails.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (p RetryPolicy) retryable(err error) bool {
	if p.IsRetryable == nil {
		return true
	}
	return p.IsRetryable(err)
}

// WithClassifier returns a copy of the policy using the given classifier.
func (p RetryPolicy) WithClassifier(fn func(error) bool) RetryPolicy {
	p.IsRetryable = fn
	return p
}

// Retrier runs retry loops. It holds the logger and the wait function so
// tests can observe delays without sleeping.
type Retrier struct {
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier that waits on real timers.
func NewRetrier(logger *log.Logger) *Retrier {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Retrier{
		logger: logger.WithPrefix("retry"),
		sleep:  sleepContext,
	}
}

// WithSleep replaces the wait function.
func (r *Retrier) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Retrier {
	clone := *r
	clone.sleep = fn
	return &clone
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do invokes op until it succeeds, the policy gives up, or ctx ends.
// After the last attempt the operation's own error is returned unwrapped.
func Do[T any](ctx context.Context, r *Retrier, name string, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var zero T
	for attempt := 1; ; attempt++ {
		r.logger.Debug("attempt", "operation", name, "attempt", attempt, "max_attempts", maxAttempts)

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("succeeded after retry", "operation", name, "attempt", attempt)
			}
			return result, nil
		}

		if attempt >= maxAttempts {
			r.logger.Warn("attempts exhausted", "operation", name, "attempt", attempt, "err", err)
			return zero, err
		}
		if !policy.retryable(err) {
			r.logger.Warn("non-retryable failure", "operation", name, "attempt", attempt, "err", err)
			return zero, err
		}

		delay := policy.Delay(attempt)
		r.logger.Info("attempt failed, retrying", "operation", name, "attempt", attempt, "delay", delay, "err", err)

		if waitErr := r.sleep(ctx, delay); waitErr != nil {
			r.logger.Warn("retry wait interrupted", "operation", name, "attempt", attempt, "err", waitErr)
			return zero, errors.Join(err, waitErr)
		}
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, r *Retrier, name string, policy RetryPolicy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, r, name, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
