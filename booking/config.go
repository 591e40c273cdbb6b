// ABOUTME: Orchestrator configuration: policies, retry schedules, breakers, timeouts
// ABOUTME: Validated at construction so a hung call always times out inside the breaker window
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/consult/models"
	"github.com/harperreed/consult/resilience"
)

type Config struct {
	Hours     models.BusinessHours
	Frequency models.FrequencyPolicy

	StoreRetry    resilience.RetryPolicy
	CalendarRetry resilience.RetryPolicy
	CRMRetry      resilience.RetryPolicy
	NotifyRetry   resilience.RetryPolicy

	CalendarBreaker resilience.BreakerConfig
	CRMBreaker      resilience.BreakerConfig

	// CallTimeout bounds each calendar or CRM call.
	CallTimeout time.Duration
	// NotifyTimeout bounds each notification attempt.
	NotifyTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	external := resilience.RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2,
	}
	return Config{
		Hours:     models.DefaultBusinessHours(),
		Frequency: models.DefaultFrequencyPolicy(),
		StoreRetry: resilience.RetryPolicy{
			MaxAttempts:       3,
			InitialDelay:      50 * time.Millisecond,
			MaxDelay:          time.Second,
			BackoffMultiplier: 2,
		},
		CalendarRetry: external,
		CRMRetry:      external,
		NotifyRetry: resilience.RetryPolicy{
			MaxAttempts:       2,
			InitialDelay:      time.Second,
			MaxDelay:          5 * time.Second,
			BackoffMultiplier: 2,
		},
		CalendarBreaker: resilience.BreakerConfig{
			Name:             "calendar",
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
			MonitoringPeriod: 2 * time.Minute,
		},
		CRMBreaker: resilience.BreakerConfig{
			Name:             "crm",
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
			MonitoringPeriod: 2 * time.Minute,
		},
		CallTimeout:   10 * time.Second,
		NotifyTimeout: 15 * time.Second,
	}
}

// Validate rejects configurations the orchestrator cannot run safely.
func (c Config) Validate() error {
	if c.Hours.StartHour < 0 || c.Hours.EndHour > 24 || c.Hours.StartHour >= c.Hours.EndHour {
		return fmt.Errorf("business hours %d-%d are invalid", c.Hours.StartHour, c.Hours.EndHour)
	}
	if len(c.Hours.Weekdays) == 0 {
		return errors.New("business hours need at least one weekday")
	}
	for _, d := range models.ValidDurations {
		if _, ok := c.Frequency[d]; !ok {
			return fmt.Errorf("frequency policy is missing the %s tier", d)
		}
	}
	if c.CallTimeout <= 0 {
		return errors.New("call timeout must be positive")
	}
	if c.NotifyTimeout <= 0 {
		return errors.New("notify timeout must be positive")
	}
	for _, b := range []resilience.BreakerConfig{c.CalendarBreaker, c.CRMBreaker} {
		if err := b.Validate(); err != nil {
			return err
		}
		if c.CallTimeout >= b.MonitoringPeriod {
			return fmt.Errorf("call timeout %s must be shorter than the %s breaker monitoring period %s",
				c.CallTimeout, b.Name, b.MonitoringPeriod)
		}
	}
	return nil
}
