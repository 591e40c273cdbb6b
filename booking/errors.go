// ABOUTME: Error taxonomy surfaced to callers of the booking operations
// ABOUTME: Typed errors carry context and match their sentinel with errors.Is
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
	"github.com/harperreed/consult/scheduling"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("time slot conflicts with an existing booking")
	ErrFrequencyLimit     = errors.New("booking frequency limit reached")
	ErrNotFound           = errors.New("booking not found")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ValidationError is bad input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError means the requested slot overlaps an active booking.
type ConflictError struct {
	Slot models.TimeSlot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time slot %s (%s) conflicts with an existing booking",
		e.Slot.Start.UTC().Format(time.RFC3339), e.Slot.Duration)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// FrequencyLimitError means the email has used up its tier.
type FrequencyLimitError struct {
	Email    string
	Decision scheduling.FrequencyDecision
}

func (e *FrequencyLimitError) Error() string {
	return fmt.Sprintf("%s has %d of %d bookings allowed since %s",
		e.Email, e.Decision.CurrentCount, e.Decision.Limit, e.Decision.WindowStart.UTC().Format(time.RFC3339))
}

func (e *FrequencyLimitError) Is(target error) bool { return target == ErrFrequencyLimit }

type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("booking %s not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ServiceUnavailableError means persistence failed after retries. The
// operation had no effect and may be retried later.
type ServiceUnavailableError struct {
	Op  string
	Err error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s: service unavailable: %v", e.Op, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

func (e *ServiceUnavailableError) Is(target error) bool { return target == ErrServiceUnavailable }
