// ABOUTME: Half-open time interval math shared by availability and conflict checks
// ABOUTME: Touching endpoints never overlap so back-to-back bookings are allowed
package scheduling

import (
	"time"

	"github.com/harperreed/consult/models"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether a and b share any instant.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Expand widens the interval by pad on both sides.
func (i Interval) Expand(pad time.Duration) Interval {
	return Interval{Start: i.Start.Add(-pad), End: i.End.Add(pad)}
}

// SlotInterval converts a slot into its interval.
func SlotInterval(s models.TimeSlot) Interval {
	return Interval{Start: s.Start, End: s.End()}
}

// BookingInterval converts a booking into its interval.
func BookingInterval(b *models.Booking) Interval {
	return Interval{Start: b.StartTime, End: b.EndTime()}
}

// BusyInterval converts an external busy period into an interval.
func BusyInterval(p models.BusyPeriod) Interval {
	return Interval{Start: p.Start, End: p.End}
}
