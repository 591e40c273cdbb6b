// ABOUTME: Store error values and the transient-failure classifier
// ABOUTME: Separates retryable lock/connection failures from constraint violations
package db

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	// ErrSlotTaken means an active booking already overlaps the requested slot.
	ErrSlotTaken       = errors.New("time slot already booked")
	// ErrBookingChanged means another writer changed the booking's status first.
	ErrBookingChanged  = errors.New("booking changed since it was read")
	ErrInvalidBooking  = errors.New("invalid booking")
	ErrContactNotFound = errors.New("contact not found")
)

// IsTransient reports whether err is a failure worth retrying: lock
// contention, a dropped connection, or a timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrInvalidBooking) ||
		errors.Is(err, ErrBookingChanged) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrCantOpen:
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
