// ABOUTME: Local CRM backed by the contacts and interaction_log tables
// ABOUTME: Implements the orchestrator's CRM client against the same SQLite database
package crm

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harperreed/consult/db"
	"github.com/harperreed/consult/models"
)

// LocalCRM keeps one contact per email and appends an interaction for
// every booking lifecycle event.
type LocalCRM struct {
	db     *sql.DB
	logger *log.Logger
}

func NewLocalCRM(database *sql.DB, logger *log.Logger) *LocalCRM {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &LocalCRM{db: database, logger: logger.WithPrefix("crm")}
}

// UpsertContact returns the id of the contact with c's email, creating it if needed.
func (l *LocalCRM) UpsertContact(ctx context.Context, c models.Contact) (string, error) {
	if err := db.UpsertContactByEmail(ctx, l.db, &c); err != nil {
		return "", err
	}
	l.logger.Debug("contact upserted", "contact_id", c.ID, "email", c.Email)
	return c.ID.String(), nil
}

// AnnotateBooking records interaction against the contact for booking b.
func (l *LocalCRM) AnnotateBooking(ctx context.Context, contactID string, b *models.Booking, interaction string) error {
	id, err := uuid.Parse(contactID)
	if err != nil {
		return fmt.Errorf("invalid contact id %q: %w", contactID, err)
	}

	bookingID := b.ID
	entry := &models.InteractionLog{
		ContactID:       id,
		BookingID:       &bookingID,
		InteractionType: interaction,
		Notes:           Summary(b, interaction),
	}
	if err := db.LogInteraction(ctx, l.db, entry); err != nil {
		return err
	}
	l.logger.Debug("interaction logged", "contact_id", id, "booking_id", b.ID, "type", interaction)
	return nil
}

// History returns the contact stored for email with its most recent interactions.
func (l *LocalCRM) History(ctx context.Context, email string, limit int) (*models.Contact, []models.InteractionLog, error) {
	contact, err := db.GetContactByEmail(ctx, l.db, email)
	if err != nil {
		return nil, nil, err
	}
	entries, err := db.GetInteractionHistory(ctx, l.db, contact.ID, limit)
	if err != nil {
		return nil, nil, err
	}
	return contact, entries, nil
}

// Summary is the note stored with an interaction.
func Summary(b *models.Booking, interaction string) string {
	when := b.StartTime.UTC().Format("2006-01-02 15:04 MST")
	switch interaction {
	case models.InteractionBooked:
		note := fmt.Sprintf("Booked %s consultation for %s", b.Duration, when)
		if b.Inquiry != "" {
			note += ": " + b.Inquiry
		}
		return note
	case models.InteractionRescheduled:
		return fmt.Sprintf("Rescheduled to %s (%s)", when, b.Duration)
	case models.InteractionCancelled:
		return fmt.Sprintf("Cancelled consultation for %s", when)
	default:
		return fmt.Sprintf("Status changed to %s for %s", b.Status, when)
	}
}
