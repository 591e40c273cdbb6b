// ABOUTME: Interfaces the orchestrator consumes: store, calendar, CRM, and notifier
// ABOUTME: Concrete adapters live in db, sync, crm, and notify
package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
)

// Store is durable booking persistence. Implementations must return
// db.ErrBookingNotFound for unknown ids, db.ErrSlotTaken when a write
// would overlap an active booking, and db.ErrBookingChanged when UpdateByID
// finds the stored status no longer equal to from.
type Store interface {
	Insert(ctx context.Context, b *models.Booking) error
	UpdateByID(ctx context.Context, b *models.Booking, from models.Status) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	FindOverlappingCandidates(ctx context.Context, beforeEnd, notBefore time.Time, excludeID *uuid.UUID) ([]*models.Booking, error)
	CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error)
	FindInRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	FindNeedingSync(ctx context.Context, limit int) ([]*models.Booking, error)
	UpdateSyncState(ctx context.Context, id uuid.UUID, state models.SyncState, at time.Time) error
}

// CalendarClient mirrors bookings into an external calendar.
type CalendarClient interface {
	CreateEvent(ctx context.Context, b *models.Booking) (string, error)
	UpdateEvent(ctx context.Context, eventID string, b *models.Booking) error
	DeleteEvent(ctx context.Context, eventID string) error
	// EventIDFor returns the id CreateEvent uses for bookingID, or "" when
	// the calendar assigns ids itself.
	EventIDFor(bookingID uuid.UUID) string
	ListBusyPeriods(ctx context.Context, start, end time.Time) ([]models.BusyPeriod, error)
}

// CRMClient records the person and the booking history in a CRM.
type CRMClient interface {
	UpsertContact(ctx context.Context, c models.Contact) (string, error)
	AnnotateBooking(ctx context.Context, contactID string, b *models.Booking, interaction string) error
}

// Notifier delivers messages to the person who booked.
type Notifier interface {
	Send(ctx context.Context, n models.Notification) error
}
