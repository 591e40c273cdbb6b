// ABOUTME: Interaction log operations for the local CRM
// ABOUTME: Records booking lifecycle notes against contacts and reads history back
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
)

// LogInteraction records a new interaction and bumps the contact's last_contacted_at.
func LogInteraction(ctx context.Context, db *sql.DB, interaction *models.InteractionLog) error {
	// Generate ID if not set
	if interaction.ID == uuid.Nil {
		interaction.ID = uuid.New()
	}
	if interaction.Timestamp.IsZero() {
		interaction.Timestamp = time.Now().UTC()
	}

	var bookingID *string
	if interaction.BookingID != nil {
		s := interaction.BookingID.String()
		bookingID = &s
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO interaction_log (id, contact_id, booking_id, interaction_type, timestamp, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		interaction.ID.String(),
		interaction.ContactID.String(),
		bookingID,
		interaction.InteractionType,
		interaction.Timestamp,
		interaction.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to log interaction: %w", err)
	}

	return UpdateContactLastContacted(ctx, db, interaction.ContactID, interaction.Timestamp)
}

// GetInteractionHistory retrieves interaction history for a contact, newest first.
func GetInteractionHistory(ctx context.Context, db *sql.DB, contactID uuid.UUID, limit int) ([]models.InteractionLog, error) {
	return queryInteractions(ctx, db, `
		SELECT id, contact_id, booking_id, interaction_type, timestamp, notes
		FROM interaction_log
		WHERE contact_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, contactID.String(), limit)
}

// GetBookingInteractions lists everything logged for one booking, oldest first.
func GetBookingInteractions(ctx context.Context, db *sql.DB, bookingID uuid.UUID) ([]models.InteractionLog, error) {
	return queryInteractions(ctx, db, `
		SELECT id, contact_id, booking_id, interaction_type, timestamp, notes
		FROM interaction_log
		WHERE booking_id = ?
		ORDER BY timestamp ASC
	`, bookingID.String())
}

func queryInteractions(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]models.InteractionLog, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var interactions []models.InteractionLog
	for rows.Next() {
		var i models.InteractionLog
		var id, contactID string
		var bookingID, notes sql.NullString
		if err := rows.Scan(&id, &contactID, &bookingID, &i.InteractionType, &i.Timestamp, &notes); err != nil {
			return nil, err
		}
		i.ID, _ = uuid.Parse(id)
		i.ContactID, _ = uuid.Parse(contactID)
		if bookingID.Valid {
			if bid, err := uuid.Parse(bookingID.String); err == nil {
				i.BookingID = &bid
			}
		}
		i.Notes = notes.String
		interactions = append(interactions, i)
	}

	return interactions, rows.Err()
}
