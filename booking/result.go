// ABOUTME: Tagged outcome of a booking operation
// ABOUTME: Expected rejections are values; only infrastructure failures are Go errors
package booking

import (
	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
	"github.com/harperreed/consult/scheduling"
)

type Outcome string

const (
	OutcomeBooked      Outcome = "booked"
	OutcomeUpdated     Outcome = "updated"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeConflict    Outcome = "conflict"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeNotFound    Outcome = "not_found"
)

// Result is what create, update, and cancel return. Booking is set for the
// success outcomes; Reason explains a rejection.
type Result struct {
	Outcome   Outcome                       `json:"outcome"`
	Booking   *models.Booking               `json:"booking,omitempty"`
	Reason    string                        `json:"reason,omitempty"`
	Field     string                        `json:"field,omitempty"`
	Slot      *models.TimeSlot              `json:"slot,omitempty"`
	Frequency *scheduling.FrequencyDecision `json:"frequency,omitempty"`
	ID        uuid.UUID                     `json:"-"`
	email     string
}

// OK reports whether the operation took effect.
func (r Result) OK() bool {
	switch r.Outcome {
	case OutcomeBooked, OutcomeUpdated, OutcomeCancelled:
		return true
	}
	return false
}

// Err converts a rejection into the typed error taxonomy. Successful results return nil.
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeInvalid:
		return &ValidationError{Field: r.Field, Reason: r.Reason}
	case OutcomeConflict:
		var slot models.TimeSlot
		if r.Slot != nil {
			slot = *r.Slot
		}
		return &ConflictError{Slot: slot}
	case OutcomeRateLimited:
		var decision scheduling.FrequencyDecision
		if r.Frequency != nil {
			decision = *r.Frequency
		}
		return &FrequencyLimitError{Email: r.email, Decision: decision}
	case OutcomeNotFound:
		return &NotFoundError{ID: r.ID}
	}
	return nil
}

func invalid(field, reason string) Result {
	return Result{Outcome: OutcomeInvalid, Field: field, Reason: reason}
}

func conflict(slot models.TimeSlot) Result {
	return Result{Outcome: OutcomeConflict, Slot: &slot, Reason: "requested time overlaps an existing booking"}
}

func changedConcurrently() Result {
	return Result{Outcome: OutcomeConflict, Reason: "booking was changed by another request, reload and retry"}
}

func notFound(id uuid.UUID) Result {
	return Result{Outcome: OutcomeNotFound, ID: id, Reason: "booking not found"}
}

func rateLimited(email string, d scheduling.FrequencyDecision) Result {
	return Result{
		Outcome:   OutcomeRateLimited,
		Frequency: &d,
		Reason:    "too many bookings for this email in the current window",
		email:     email,
	}
}
