// ABOUTME: Google Calendar adapter mirroring bookings as events and reading free/busy time
// ABOUTME: Event ids derive from booking ids so a retried insert cannot create duplicates
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

type GoogleCalendar struct {
	svc        *calendar.Service
	calendarID string
	logger     *log.Logger
}

func NewGoogleCalendar(svc *calendar.Service, calendarID string, logger *log.Logger) *GoogleCalendar {
	if calendarID == "" {
		calendarID = "primary"
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &GoogleCalendar{svc: svc, calendarID: calendarID, logger: logger.WithPrefix("calendar")}
}

// EventID is the calendar event id for a booking: the uuid's hex digits,
// which fall inside the base32hex alphabet Google requires.
func EventID(bookingID uuid.UUID) string {
	return strings.ReplaceAll(bookingID.String(), "-", "")
}

func (g *GoogleCalendar) EventIDFor(bookingID uuid.UUID) string {
	return EventID(bookingID)
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, b *models.Booking) (string, error) {
	ev := eventFor(b)
	ev.Id = EventID(b.ID)

	_, err := g.svc.Events.Insert(g.calendarID, ev).Context(ctx).Do()
	if hasStatus(err, http.StatusConflict) {
		// An earlier attempt got through; make sure the event matches the booking.
		g.logger.Debug("event already exists, updating", "event_id", ev.Id)
		_, err = g.svc.Events.Update(g.calendarID, ev.Id, ev).Context(ctx).Do()
	}
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return ev.Id, nil
}

func (g *GoogleCalendar) UpdateEvent(ctx context.Context, eventID string, b *models.Booking) error {
	ev := eventFor(b)
	if _, err := g.svc.Events.Update(g.calendarID, eventID, ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update event %s: %w", eventID, err)
	}
	return nil
}

// DeleteEvent treats an event that is already gone as deleted.
func (g *GoogleCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	if hasStatus(err, http.StatusNotFound) || hasStatus(err, http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

func (g *GoogleCalendar) ListBusyPeriods(ctx context.Context, start, end time.Time) ([]models.BusyPeriod, error) {
	resp, err := g.svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: start.UTC().Format(time.RFC3339),
		TimeMax: end.UTC().Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("query free/busy: %w", err)
	}

	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return nil, fmt.Errorf("free/busy response has no entry for calendar %q", g.calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("free/busy for %q failed: %s", g.calendarID, cal.Errors[0].Reason)
	}

	periods := make([]models.BusyPeriod, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		s, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid busy start %q: %w", p.Start, err)
		}
		e, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("invalid busy end %q: %w", p.End, err)
		}
		periods = append(periods, models.BusyPeriod{Start: s.UTC(), End: e.UTC()})
	}
	return periods, nil
}

func eventFor(b *models.Booking) *calendar.Event {
	summary := "Consultation: " + b.Name
	if b.Company != "" {
		summary += " (" + b.Company + ")"
	}

	var desc strings.Builder
	if b.Inquiry != "" {
		desc.WriteString(b.Inquiry)
		desc.WriteString("\n\n")
	}
	fmt.Fprintf(&desc, "Email: %s\n", b.Email)
	if b.Phone != "" {
		fmt.Fprintf(&desc, "Phone: %s\n", b.Phone)
	}
	fmt.Fprintf(&desc, "Duration: %d minutes\nBooking: %s\n", int(b.Duration), b.ID)

	status := "confirmed"
	if b.Status == models.StatusPending {
		status = "tentative"
	}

	return &calendar.Event{
		Summary:     summary,
		Description: desc.String(),
		Status:      status,
		Start:       &calendar.EventDateTime{DateTime: b.StartTime.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendar.EventDateTime{DateTime: b.EndTime().UTC().Format(time.RFC3339), TimeZone: "UTC"},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{"booking_id": b.ID.String()},
		},
	}
}

func hasStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
