// ABOUTME: Calendar client used when Google has not been authorised
package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
)

// UnconfiguredCalendar fails every call so bookings are flagged for manual
// calendar sync until `consult calendar init` has been run.
type UnconfiguredCalendar struct{}

func (UnconfiguredCalendar) CreateEvent(context.Context, *models.Booking) (string, error) {
	return "", ErrCalendarNotConfigured
}

func (UnconfiguredCalendar) UpdateEvent(context.Context, string, *models.Booking) error {
	return ErrCalendarNotConfigured
}

func (UnconfiguredCalendar) DeleteEvent(context.Context, string) error {
	return ErrCalendarNotConfigured
}

// EventIDFor is empty: nothing can have been written without authorisation.
func (UnconfiguredCalendar) EventIDFor(uuid.UUID) string {
	return ""
}

func (UnconfiguredCalendar) ListBusyPeriods(context.Context, time.Time, time.Time) ([]models.BusyPeriod, error) {
	return nil, ErrCalendarNotConfigured
}
