// ABOUTME: Best-effort calendar, CRM, and notification steps after a booking is persisted
// ABOUTME: Failures set manual-sync flags and are logged; they never fail the operation
package booking

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/consult/models"
	"github.com/harperreed/consult/resilience"
)

func (o *Orchestrator) markCalendar(b *models.Booking, ok bool) {
	b.CalendarSynced = ok
	b.RequiresManualCalendarSync = !ok
}

func (o *Orchestrator) markCRM(b *models.Booking, ok bool) {
	b.CRMSynced = ok
	b.RequiresManualCRMSync = !ok
}

func (o *Orchestrator) createCalendarEvent(ctx context.Context, logger *log.Logger, b *models.Booking) {
	eventID, err := callExternal(ctx, o, o.calendarBreaker, "calendar.create_event", o.cfg.CalendarRetry, func(ctx context.Context) (string, error) {
		return o.calendar.CreateEvent(ctx, b)
	})
	if err != nil {
		logger.Warn("calendar sync deferred", "step", "create_event", "err", err)
		o.markCalendar(b, false)
		return
	}
	b.CalendarEventID = eventID
	o.markCalendar(b, true)
}

// updateCalendarEvent moves the existing event, or creates one if the
// booking never reached the calendar.
func (o *Orchestrator) updateCalendarEvent(ctx context.Context, logger *log.Logger, b *models.Booking) {
	if b.CalendarEventID == "" {
		o.createCalendarEvent(ctx, logger, b)
		return
	}

	_, err := callExternal(ctx, o, o.calendarBreaker, "calendar.update_event", o.cfg.CalendarRetry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.calendar.UpdateEvent(ctx, b.CalendarEventID, b)
	})
	if err != nil {
		logger.Warn("calendar sync deferred", "step", "update_event", "event_id", b.CalendarEventID, "err", err)
		o.markCalendar(b, false)
		return
	}
	o.markCalendar(b, true)
}

// removeCalendarEvent deletes the event of a cancelled booking. A create
// that failed on our side may still have landed remotely, so an unconfirmed
// booking is deleted under the id the calendar would have given it.
func (o *Orchestrator) removeCalendarEvent(ctx context.Context, logger *log.Logger, b *models.Booking) {
	eventID := b.CalendarEventID
	if eventID == "" && !b.CalendarSynced {
		eventID = o.calendar.EventIDFor(b.ID)
	}
	if eventID == "" {
		o.markCalendar(b, true)
		return
	}

	_, err := callExternal(ctx, o, o.calendarBreaker, "calendar.delete_event", o.cfg.CalendarRetry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.calendar.DeleteEvent(ctx, eventID)
	})
	if err != nil {
		logger.Warn("calendar sync deferred", "step", "delete_event", "event_id", eventID, "err", err)
		o.markCalendar(b, false)
		return
	}
	o.markCalendar(b, true)
}

// syncCRM upserts the contact if needed, then records the interaction.
func (o *Orchestrator) syncCRM(ctx context.Context, logger *log.Logger, b *models.Booking, interaction string) {
	if b.CRMContactID == "" {
		contactID, err := callExternal(ctx, o, o.crmBreaker, "crm.upsert_contact", o.cfg.CRMRetry, func(ctx context.Context) (string, error) {
			return o.crm.UpsertContact(ctx, models.Contact{
				Name:    b.Name,
				Email:   b.Email,
				Phone:   b.Phone,
				Company: b.Company,
			})
		})
		if err != nil {
			logger.Warn("crm sync deferred", "step", "upsert_contact", "err", err)
			o.markCRM(b, false)
			return
		}
		b.CRMContactID = contactID
	}

	_, err := callExternal(ctx, o, o.crmBreaker, "crm.annotate_booking", o.cfg.CRMRetry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.crm.AnnotateBooking(ctx, b.CRMContactID, b, interaction)
	})
	if err != nil {
		logger.Warn("crm sync deferred", "step", "annotate_booking", "contact_id", b.CRMContactID, "err", err)
		o.markCRM(b, false)
		return
	}
	o.markCRM(b, true)
}

// notify sends one message with its own retry policy and reports whether it was delivered.
func (o *Orchestrator) notify(ctx context.Context, logger *log.Logger, b *models.Booking, template models.NotificationTemplate, previousStart *time.Time) bool {
	msg := models.Notification{
		Template:      template,
		Recipient:     b.Email,
		RecipientName: b.Name,
		Booking:       *b,
		PreviousStart: previousStart,
	}

	err := resilience.Run(ctx, o.retrier, "notify."+string(template), o.cfg.NotifyRetry, func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, o.cfg.NotifyTimeout)
		defer cancel()
		return o.notifier.Send(sendCtx, msg)
	})
	if err != nil {
		logger.Error("notification failed", "template", template, "recipient", b.Email, "err", err)
		return false
	}
	logger.Debug("notification sent", "template", template, "recipient", b.Email)
	return true
}

// persistSync writes the sync flags back. On failure the flags in b are
// still accurate and the next reconcile run picks the booking up.
func (o *Orchestrator) persistSync(ctx context.Context, logger *log.Logger, b *models.Booking) {
	at := o.timestamp()
	err := resilience.Run(ctx, o.retrier, "store.update_sync_state", o.storePolicy(), func(ctx context.Context) error {
		return o.store.UpdateSyncState(ctx, b.ID, b.SyncState(), at)
	})
	if err != nil {
		logger.Error("failed to persist sync state", "sync_state", b.SyncState(), "err", err)
		return
	}
	b.UpdatedAt = at
}
