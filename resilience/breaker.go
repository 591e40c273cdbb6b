// ABOUTME: Circuit breaker guarding calls to a single external dependency
// ABOUTME: CLOSED/OPEN/HALF_OPEN state machine with a monitoring window and one half-open trial
package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrBreakerOpen is matched by every rejection from an open breaker.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// State is the breaker's current mode.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText lets stats render the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// OpenError is returned without invoking the operation while the breaker rejects calls.
type OpenError struct {
	Name    string
	RetryAt time.Time
}

func (e *OpenError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("%s: circuit breaker is open", e.Name)
	}
	return fmt.Sprintf("%s: circuit breaker is open until %s", e.Name, e.RetryAt.Format(time.RFC3339))
}

func (e *OpenError) Unwrap() error { return ErrBreakerOpen }

// BreakerConfig configures one breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold int
	ResetTimeout     time.Duration
	// MonitoringPeriod is the longest gap between two failures that still
	// counts them as consecutive.
	MonitoringPeriod time.Duration
}

// Validate checks the configuration for obviously unusable values.
func (c BreakerConfig) Validate() error {
	if c.Name == "" {
		return errors.New("breaker name is required")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("breaker %s: failure threshold must be at least 1", c.Name)
	}
	if c.ResetTimeout <= 0 {
		return fmt.Errorf("breaker %s: reset timeout must be positive", c.Name)
	}
	if c.MonitoringPeriod <= 0 {
		return fmt.Errorf("breaker %s: monitoring period must be positive", c.Name)
	}
	return nil
}

// BreakerStats is a point-in-time snapshot of a breaker.
type BreakerStats struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	Failures        int       `json:"failures"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	NextAttemptTime time.Time `json:"next_attempt_time,omitempty"`
	TotalCalls      int64     `json:"total_calls"`
	TotalSuccesses  int64     `json:"total_successes"`
	TotalFailures   int64     `json:"total_failures"`
	TotalRejections int64     `json:"total_rejections"`
}

// Breaker tracks failures of one dependency. It is safe for concurrent use;
// every read-check-write of its state happens under mu.
type Breaker struct {
	mu  sync.Mutex
	cfg BreakerConfig

	state         State
	failures      int
	lastFailure   time.Time
	nextAttempt   time.Time
	trialInFlight bool

	totalCalls      int64
	totalSuccesses  int64
	totalFailures   int64
	totalRejections int64

	now    func() time.Time
	logger *log.Logger
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig, logger *log.Logger) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Breaker{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.WithPrefix("breaker").With("dependency", cfg.Name),
	}, nil
}

// SetClock replaces the time source. Intended for tests.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Name returns the dependency name.
func (b *Breaker) Name() string {
	return b.cfg.Name
}

// Config returns the breaker's configuration.
func (b *Breaker) Config() BreakerConfig {
	return b.cfg
}

// State returns the current state. An expired OPEN state stays OPEN until the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of counters and timestamps.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		Name:            b.cfg.Name,
		State:           b.state,
		Failures:        b.failures,
		LastFailureTime: b.lastFailure,
		NextAttemptTime: b.nextAttempt,
		TotalCalls:      b.totalCalls,
		TotalSuccesses:  b.totalSuccesses,
		TotalFailures:   b.totalFailures,
		TotalRejections: b.totalRejections,
	}
}

// Reset forces the breaker CLOSED and clears failure tracking.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toClosed()
	b.logger.Info("breaker reset manually")
}

// Execute runs op through the breaker.
func Execute[T any](ctx context.Context, b *Breaker, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	trial, err := b.admit()
	if err != nil {
		return zero, err
	}

	result, err := op(ctx)
	b.record(trial, err)
	return result, err
}

// Call is Execute for operations without a result.
func (b *Breaker) Call(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// admit decides whether a call may proceed and reports whether it is the half-open trial.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	now := b.now()

	switch b.state {
	case StateClosed:
		return false, nil

	case StateOpen:
		if now.Before(b.nextAttempt) {
			b.totalRejections++
			return false, &OpenError{Name: b.cfg.Name, RetryAt: b.nextAttempt}
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		b.logger.Info("breaker half-open, allowing trial call")
		return true, nil

	case StateHalfOpen:
		if b.trialInFlight {
			b.totalRejections++
			return false, &OpenError{Name: b.cfg.Name}
		}
		b.trialInFlight = true
		return true, nil
	}

	return false, nil
}

func (b *Breaker) record(trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialInFlight = false
	}

	// A caller abandoning its own request says nothing about the dependency.
	if errors.Is(err, context.Canceled) {
		return
	}

	now := b.now()

	// Only the trial decides a HALF_OPEN breaker. Calls admitted while CLOSED
	// that finish after the breaker tripped are counted but change nothing.
	if err == nil {
		b.totalSuccesses++
		switch {
		case trial && b.state == StateHalfOpen:
			b.toClosed()
			b.logger.Info("breaker closed after successful trial")
		case b.state == StateClosed:
			b.failures = 0
		}
		return
	}

	b.totalFailures++

	if trial {
		if b.state == StateHalfOpen {
			b.failures++
			b.lastFailure = now
			b.toOpen(now)
			b.logger.Warn("trial call failed, breaker re-opened", "retry_at", b.nextAttempt, "err", err)
		}
		return
	}
	if b.state != StateClosed {
		return
	}

	if !b.lastFailure.IsZero() && now.Sub(b.lastFailure) <= b.cfg.MonitoringPeriod {
		b.failures++
	} else {
		b.failures = 1
	}
	b.lastFailure = now

	if b.state == StateClosed && b.failures >= b.cfg.FailureThreshold {
		b.toOpen(now)
		b.logger.Warn("breaker opened", "failures", b.failures, "retry_at", b.nextAttempt, "err", err)
	}
}

// toOpen must be called with b.mu held.
func (b *Breaker) toOpen(now time.Time) {
	b.state = StateOpen
	b.nextAttempt = now.Add(b.cfg.ResetTimeout)
}

// toClosed must be called with b.mu held.
func (b *Breaker) toClosed() {
	b.state = StateClosed
	b.failures = 0
	b.lastFailure = time.Time{}
	b.nextAttempt = time.Time{}
	b.trialInFlight = false
}
