// ABOUTME: SQLite persistence for consultation bookings
// ABOUTME: Overlap-checked inserts and updates, range queries, frequency counts, sync flags
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
)

const bookingColumns = `id, name, email, phone, company, inquiry, start_at, duration_minutes, status,
	confirmation_sent, calendar_synced, requires_manual_calendar_sync, crm_synced, requires_manual_crm_sync,
	calendar_event_id, crm_contact_id, created_at, updated_at`

// overlapClause matches active rows intersecting [?, ?) given as (end, start).
const overlapClause = `status != 'cancelled' AND start_at < ? AND start_at + duration_minutes * 60 > ?`

// BookingStore persists bookings. Times are stored as unix seconds; the end
// of a booking is always derived from start and duration.
type BookingStore struct {
	db *sql.DB
}

func NewBookingStore(db *sql.DB) *BookingStore {
	return &BookingStore{db: db}
}

// Insert writes a new booking. The overlap check and the insert share one
// immediate transaction; ErrSlotTaken is returned if the slot is occupied.
func (s *BookingStore) Insert(ctx context.Context, b *models.Booking) error {
	if b == nil || b.ID == uuid.Nil {
		return ErrInvalidBooking
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Safe even after commit
	}()

	if b.Active() {
		taken, err := overlapExists(ctx, tx, b, nil)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotTaken
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID.String(), b.Name, strings.ToLower(b.Email), b.Phone, b.Company, b.Inquiry,
		b.StartTime.Unix(), int(b.Duration), string(b.Status),
		b.ConfirmationSent, b.CalendarSynced, b.RequiresManualCalendarSync, b.CRMSynced, b.RequiresManualCRMSync,
		b.CalendarEventID, b.CRMContactID, b.CreatedAt.Unix(), b.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	return tx.Commit()
}

// UpdateByID replaces the mutable fields of an existing booking, re-checking
// overlap against every other active booking. The write only applies while
// the stored status still equals from; otherwise it returns ErrBookingChanged.
func (s *BookingStore) UpdateByID(ctx context.Context, b *models.Booking, from models.Status) error {
	if b == nil || b.ID == uuid.Nil {
		return ErrInvalidBooking
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Safe even after commit
	}()

	if b.Active() {
		taken, err := overlapExists(ctx, tx, b, &b.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotTaken
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET name = ?, email = ?, phone = ?, company = ?, inquiry = ?, start_at = ?, duration_minutes = ?, status = ?,
			confirmation_sent = ?, calendar_synced = ?, requires_manual_calendar_sync = ?, crm_synced = ?, requires_manual_crm_sync = ?,
			calendar_event_id = ?, crm_contact_id = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`,
		b.Name, strings.ToLower(b.Email), b.Phone, b.Company, b.Inquiry, b.StartTime.Unix(), int(b.Duration), string(b.Status),
		b.ConfirmationSent, b.CalendarSynced, b.RequiresManualCalendarSync, b.CRMSynced, b.RequiresManualCRMSync,
		b.CalendarEventID, b.CRMContactID, b.UpdatedAt.Unix(), b.ID.String(), string(from),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, b.ID.String()).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read booking status: %w", err)
		}
		return fmt.Errorf("%w: status is now %s", ErrBookingChanged, current)
	}

	return tx.Commit()
}

// UpdateSyncState writes only the external sync flags and correlation ids.
func (s *BookingStore) UpdateSyncState(ctx context.Context, id uuid.UUID, state models.SyncState, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET confirmation_sent = ?, calendar_synced = ?, requires_manual_calendar_sync = ?, crm_synced = ?, requires_manual_crm_sync = ?,
			calendar_event_id = ?, crm_contact_id = ?, updated_at = ?
		WHERE id = ?
	`,
		state.ConfirmationSent, state.CalendarSynced, state.RequiresManualCalendarSync, state.CRMSynced, state.RequiresManualCRMSync,
		state.CalendarEventID, state.CRMContactID, at.Unix(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// FindByID returns ErrBookingNotFound for unknown ids.
func (s *BookingStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id.String())

	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// FindOverlappingCandidates returns active bookings with notBefore <= start < beforeEnd.
// The caller finishes the overlap test against each booking's end.
func (s *BookingStore) FindOverlappingCandidates(ctx context.Context, beforeEnd, notBefore time.Time, excludeID *uuid.UUID) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE status != 'cancelled' AND start_at < ? AND start_at >= ?`
	args := []interface{}{beforeEnd.Unix(), notBefore.Unix()}

	if excludeID != nil {
		query += ` AND id != ?`
		args = append(args, excludeID.String())
	}
	query += ` ORDER BY start_at`

	return s.queryBookings(ctx, query, args...)
}

// CountByEmailSince counts active bookings for email created at or after since.
func (s *BookingStore) CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE email = ? COLLATE NOCASE AND status != 'cancelled' AND created_at >= ?
	`, strings.ToLower(strings.TrimSpace(email)), since.Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// FindInRange returns bookings of any status that intersect [start, end), ordered by start.
func (s *BookingStore) FindInRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	return s.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE start_at < ? AND start_at + duration_minutes * 60 > ?
		ORDER BY start_at
	`, end.Unix(), start.Unix())
}

// FindNeedingSync returns bookings an external system is behind on, oldest first.
func (s *BookingStore) FindNeedingSync(ctx context.Context, limit int) ([]*models.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE requires_manual_calendar_sync = 1
			OR requires_manual_crm_sync = 1
			OR (status != 'cancelled' AND (calendar_synced = 0 OR crm_synced = 0))
		ORDER BY start_at
		LIMIT ?
	`, limit)
}

func (s *BookingStore) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}
	return bookings, nil
}

func overlapExists(ctx context.Context, tx *sql.Tx, b *models.Booking, excludeID *uuid.UUID) (bool, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE ` + overlapClause
	args := []interface{}{b.EndTime().Unix(), b.StartTime.Unix()}
	if excludeID != nil {
		query += ` AND id != ?`
		args = append(args, excludeID.String())
	}

	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check overlap: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var id, status string
	var startAt, createdAt, updatedAt int64
	var duration int

	err := row.Scan(
		&id, &b.Name, &b.Email, &b.Phone, &b.Company, &b.Inquiry,
		&startAt, &duration, &status,
		&b.ConfirmationSent, &b.CalendarSynced, &b.RequiresManualCalendarSync, &b.CRMSynced, &b.RequiresManualCRMSync,
		&b.CalendarEventID, &b.CRMContactID, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid booking id %q: %w", id, err)
	}
	b.Duration = models.Duration(duration)
	b.Status = models.Status(status)
	b.StartTime = time.Unix(startAt, 0).UTC()
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	b.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &b, nil
}
