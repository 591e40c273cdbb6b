// ABOUTME: Per-email booking caps over a rolling window keyed by duration tier
// ABOUTME: Advisory check evaluated before the write; concurrent requests can both pass
package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/consult/models"
)

// EmailCounter counts non-cancelled bookings for an email created at or after since.
type EmailCounter interface {
	CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error)
}

// FrequencyDecision is the outcome of a frequency check.
type FrequencyDecision struct {
	Allowed      bool      `json:"allowed"`
	CurrentCount int       `json:"current_count"`
	Limit        int       `json:"limit"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
}

// FrequencyLimiter enforces the policy's caps. The count and the later
// insert are not atomic; the limits are abuse heuristics, not guarantees.
type FrequencyLimiter struct {
	store  EmailCounter
	policy models.FrequencyPolicy
	now    func() time.Time
}

func NewFrequencyLimiter(store EmailCounter, policy models.FrequencyPolicy) *FrequencyLimiter {
	return &FrequencyLimiter{store: store, policy: policy, now: time.Now}
}

// SetClock replaces the time source. Intended for tests.
func (l *FrequencyLimiter) SetClock(now func() time.Time) {
	l.now = now
}

// CheckAndCount counts recent bookings for email and compares against the tier for duration.
func (l *FrequencyLimiter) CheckAndCount(ctx context.Context, email string, duration models.Duration) (FrequencyDecision, error) {
	tier, ok := l.policy[duration]
	if !ok {
		return FrequencyDecision{}, fmt.Errorf("%w: %s", ErrUnknownTier, duration)
	}

	now := l.now()
	since := now.Add(-tier.Window)
	normalized := strings.ToLower(strings.TrimSpace(email))

	count, err := l.store.CountByEmailSince(ctx, normalized, since)
	if err != nil {
		return FrequencyDecision{}, fmt.Errorf("failed to count bookings for %s: %w", normalized, err)
	}

	return FrequencyDecision{
		Allowed:      count < tier.Limit,
		CurrentCount: count,
		Limit:        tier.Limit,
		WindowStart:  since,
		WindowEnd:    now,
	}, nil
}
