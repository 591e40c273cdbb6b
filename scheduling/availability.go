// ABOUTME: Computes open consultation slots inside business hours
// ABOUTME: Filters candidates by advance window, buffer, existing bookings, and calendar busy time
package scheduling

import (
	"fmt"
	"time"

	"github.com/harperreed/consult/models"
)

// SlotQuery describes one availability search. Bookings and Busy are the
// blocking data already loaded for the range.
type SlotQuery struct {
	RangeStart time.Time
	RangeEnd   time.Time
	Duration   models.Duration
	Hours      models.BusinessHours
	Bookings   []*models.Booking
	Busy       []models.BusyPeriod
}

// AvailabilityEngine enumerates bookable slots. It holds no state besides its clock.
type AvailabilityEngine struct {
	now func() time.Time
}

func NewAvailabilityEngine() *AvailabilityEngine {
	return &AvailabilityEngine{now: time.Now}
}

// SetClock replaces the time source. Intended for tests.
func (e *AvailabilityEngine) SetClock(now func() time.Time) {
	e.now = now
}

// ValidateRange checks a search range against the policy cap.
func ValidateRange(start, end time.Time, hours models.BusinessHours) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if hours.MaxRangeDays > 0 {
		limit := time.Duration(hours.MaxRangeDays) * 24 * time.Hour
		if end.Sub(start) > limit {
			return fmt.Errorf("%w: range exceeds %d days", ErrInvalidRange, hours.MaxRangeDays)
		}
	}
	return nil
}

// Slots returns every open slot in chronological order.
func (e *AvailabilityEngine) Slots(q SlotQuery) ([]models.TimeSlot, error) {
	if !q.Duration.Valid() {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, int(q.Duration))
	}
	if err := ValidateRange(q.RangeStart, q.RangeEnd, q.Hours); err != nil {
		return nil, err
	}

	loc := q.Hours.Location
	if loc == nil {
		loc = time.UTC
	}

	now := e.now()
	earliest := now.Add(time.Duration(q.Hours.MinAdvanceHours) * time.Hour)
	var latest time.Time
	if q.Hours.MaxAdvanceHours > 0 {
		latest = now.Add(time.Duration(q.Hours.MaxAdvanceHours) * time.Hour)
	}

	blocked := blockingIntervals(q.Bookings, q.Busy)
	step := q.Duration.Std()
	buffer := q.Hours.Buffer()

	slots := []models.TimeSlot{}

	first := q.RangeStart.In(loc)
	last := q.RangeEnd.In(loc)
	for day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc); !day.After(last); day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc) {
		if !q.Hours.AllowsWeekday(day.Weekday()) {
			continue
		}

		open := time.Date(day.Year(), day.Month(), day.Day(), q.Hours.StartHour, 0, 0, 0, loc)
		closing := time.Date(day.Year(), day.Month(), day.Day(), q.Hours.EndHour, 0, 0, 0, loc)

		for start := open; !start.Add(step).After(closing); start = start.Add(step) {
			if start.Before(q.RangeStart) || !start.Before(q.RangeEnd) {
				continue
			}
			if start.Before(earliest) {
				continue
			}
			if !latest.IsZero() && start.After(latest) {
				continue
			}

			window := Interval{Start: start, End: start.Add(step)}.Expand(buffer)
			if intersectsAny(window, blocked) {
				continue
			}

			slots = append(slots, models.TimeSlot{Start: start.UTC(), Duration: q.Duration})
		}
	}

	return slots, nil
}

func blockingIntervals(bookings []*models.Booking, busy []models.BusyPeriod) []Interval {
	out := make([]Interval, 0, len(bookings)+len(busy))
	for _, b := range bookings {
		if b == nil || !b.Active() {
			continue
		}
		out = append(out, BookingInterval(b))
	}
	for _, p := range busy {
		out = append(out, BusyInterval(p))
	}
	return out
}

func intersectsAny(window Interval, blocked []Interval) bool {
	for _, iv := range blocked {
		if Overlaps(window, iv) {
			return true
		}
	}
	return false
}
