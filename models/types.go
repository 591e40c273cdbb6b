// ABOUTME: Data models for consultation bookings
// ABOUTME: Defines Booking, TimeSlot, BusyPeriod, policies, and status transitions
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Duration is a consultation length. Only the tiers in ValidDurations are bookable.
type Duration int

const (
	Duration15 Duration = 15
	Duration30 Duration = 30
	Duration45 Duration = 45
	Duration60 Duration = 60
)

// ValidDurations lists every bookable duration tier in ascending order.
var ValidDurations = []Duration{Duration15, Duration30, Duration45, Duration60}

// MaxDuration is the longest bookable tier. Overlap queries use it as a lower bound.
const MaxDuration = time.Duration(Duration60) * time.Minute

// ParseDuration parses a minute count into a bookable tier.
func ParseDuration(minutes int) (Duration, error) {
	d := Duration(minutes)
	if !d.Valid() {
		return 0, fmt.Errorf("invalid duration %d: must be one of 15, 30, 45, 60 minutes", minutes)
	}
	return d, nil
}

// Valid reports whether d is one of the bookable tiers.
func (d Duration) Valid() bool {
	for _, v := range ValidDurations {
		if d == v {
			return true
		}
	}
	return false
}

// Std converts the tier into a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d) * time.Minute
}

func (d Duration) String() string {
	return fmt.Sprintf("%dm", int(d))
}

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusNoShow, StatusCancelled},
}

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return st, nil
	}
	return "", fmt.Errorf("invalid status: %s", s)
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

// Booking is a reserved consultation.
type Booking struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	Inquiry   string    `json:"inquiry,omitempty"`
	StartTime time.Time `json:"start_time"`
	Duration  Duration  `json:"duration"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ConfirmationSent           bool   `json:"confirmation_sent"`
	CalendarSynced             bool   `json:"calendar_synced"`
	RequiresManualCalendarSync bool   `json:"requires_manual_calendar_sync"`
	CRMSynced                  bool   `json:"crm_synced"`
	RequiresManualCRMSync      bool   `json:"requires_manual_crm_sync"`
	CalendarEventID            string `json:"calendar_event_id,omitempty"`
	CRMContactID               string `json:"crm_contact_id,omitempty"`
}

// EndTime is derived from the start and duration and is never stored.
func (b *Booking) EndTime() time.Time {
	return b.StartTime.Add(b.Duration.Std())
}

// Slot returns the booking's time component.
func (b *Booking) Slot() TimeSlot {
	return TimeSlot{Start: b.StartTime, Duration: b.Duration}
}

// Active reports whether the booking occupies its slot.
func (b *Booking) Active() bool {
	return b.Status != StatusCancelled
}

// NeedsSync reports whether an external system is behind this booking's state.
// Cancelled bookings only qualify while a manual flag is still set.
func (b *Booking) NeedsSync() bool {
	if b.RequiresManualCalendarSync || b.RequiresManualCRMSync {
		return true
	}
	return b.Active() && (!b.CalendarSynced || !b.CRMSynced)
}

// SyncState is the subset of a booking that tracks external systems.
type SyncState struct {
	ConfirmationSent           bool
	CalendarSynced             bool
	RequiresManualCalendarSync bool
	CRMSynced                  bool
	RequiresManualCRMSync      bool
	CalendarEventID            string
	CRMContactID               string
}

// SyncState extracts the sync flags of the booking.
func (b *Booking) SyncState() SyncState {
	return SyncState{
		ConfirmationSent:           b.ConfirmationSent,
		CalendarSynced:             b.CalendarSynced,
		RequiresManualCalendarSync: b.RequiresManualCalendarSync,
		CRMSynced:                  b.CRMSynced,
		RequiresManualCRMSync:      b.RequiresManualCRMSync,
		CalendarEventID:            b.CalendarEventID,
		CRMContactID:               b.CRMContactID,
	}
}

// TimeSlot is a start time plus a duration tier.
type TimeSlot struct {
	Start    time.Time `json:"start"`
	Duration Duration  `json:"duration"`
}

// End returns the exclusive end of the slot.
func (s TimeSlot) End() time.Time {
	return s.Start.Add(s.Duration.Std())
}

// BusyPeriod is time an external calendar reports as unavailable.
type BusyPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BusinessHours constrains when consultations may be booked.
type BusinessHours struct {
	Weekdays        []time.Weekday
	StartHour       int
	EndHour         int
	Location        *time.Location
	BufferMinutes   int
	MinAdvanceHours int
	MaxAdvanceHours int
	MaxRangeDays    int
}

// Buffer returns the idle time enforced around each booking.
func (h BusinessHours) Buffer() time.Duration {
	return time.Duration(h.BufferMinutes) * time.Minute
}

// AllowsWeekday reports whether bookings may fall on the given weekday.
func (h BusinessHours) AllowsWeekday(d time.Weekday) bool {
	for _, w := range h.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// Contains reports whether the whole slot lies inside business hours on an allowed weekday.
func (h BusinessHours) Contains(slot TimeSlot) bool {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	start := slot.Start.In(loc)
	if !h.AllowsWeekday(start.Weekday()) {
		return false
	}
	open := time.Date(start.Year(), start.Month(), start.Day(), h.StartHour, 0, 0, 0, loc)
	closing := time.Date(start.Year(), start.Month(), start.Day(), h.EndHour, 0, 0, 0, loc)
	return !start.Before(open) && !slot.End().After(closing)
}

// DefaultBusinessHours is Monday to Friday, 09:00-17:00 UTC.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		Weekdays:        []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		StartHour:       9,
		EndHour:         17,
		Location:        time.UTC,
		BufferMinutes:   15,
		MinAdvanceHours: 24,
		MaxAdvanceHours: 24 * 60,
		MaxRangeDays:    30,
	}
}

// FrequencyTier caps bookings per email inside a rolling window.
type FrequencyTier struct {
	Limit  int
	Window time.Duration
}

// FrequencyPolicy maps each duration tier to its cap.
type FrequencyPolicy map[Duration]FrequencyTier

// DefaultFrequencyPolicy allows more short calls than long ones.
func DefaultFrequencyPolicy() FrequencyPolicy {
	return FrequencyPolicy{
		Duration15: {Limit: 3, Window: 24 * time.Hour},
		Duration30: {Limit: 2, Window: 24 * time.Hour},
		Duration45: {Limit: 2, Window: 48 * time.Hour},
		Duration60: {Limit: 1, Window: 72 * time.Hour},
	}
}

// Contact is a CRM person record keyed by email.
type Contact struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Company         string     `json:"company,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// InteractionType constants.
const (
	InteractionBooked      = "booked"
	InteractionRescheduled = "rescheduled"
	InteractionCancelled   = "cancelled"
	InteractionStatus      = "status"
)

type InteractionLog struct {
	ID              uuid.UUID  `json:"id"`
	ContactID       uuid.UUID  `json:"contact_id"`
	BookingID       *uuid.UUID `json:"booking_id,omitempty"`
	InteractionType string     `json:"interaction_type"`
	Timestamp       time.Time  `json:"timestamp"`
	Notes           string     `json:"notes,omitempty"`
}

// NotificationTemplate names a message sent to the person who booked.
type NotificationTemplate string

const (
	TemplateConfirmation NotificationTemplate = "booking_confirmation"
	TemplateRescheduled  NotificationTemplate = "booking_rescheduled"
	TemplateCancelled    NotificationTemplate = "booking_cancelled"
)

// Notification is one outbound message about a booking.
type Notification struct {
	Template      NotificationTemplate `json:"template"`
	Recipient     string               `json:"recipient"`
	RecipientName string               `json:"recipient_name"`
	Booking       Booking              `json:"booking"`
	PreviousStart *time.Time           `json:"previous_start,omitempty"`
}
