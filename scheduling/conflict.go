// ABOUTME: Detects overlap between a candidate slot and active bookings
// ABOUTME: The store narrows by start time, the exact overlap test runs in memory
package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
)

// CandidateFinder is the store query the detector needs. It returns
// non-cancelled bookings with notBefore <= start < beforeEnd.
type CandidateFinder interface {
	FindOverlappingCandidates(ctx context.Context, beforeEnd, notBefore time.Time, excludeID *uuid.UUID) ([]*models.Booking, error)
}

type ConflictDetector struct {
	store CandidateFinder
}

func NewConflictDetector(store CandidateFinder) *ConflictDetector {
	return &ConflictDetector{store: store}
}

// Conflicts returns the active bookings overlapping slot, ignoring excludeID.
func (d *ConflictDetector) Conflicts(ctx context.Context, slot models.TimeSlot, excludeID *uuid.UUID) ([]*models.Booking, error) {
	// No booking can reach slot.Start if it began more than MaxDuration earlier.
	candidates, err := d.store.FindOverlappingCandidates(ctx, slot.End(), slot.Start.Add(-models.MaxDuration), excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load overlap candidates: %w", err)
	}

	want := SlotInterval(slot)
	var out []*models.Booking
	for _, b := range candidates {
		if !b.Active() {
			continue
		}
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		if Overlaps(BookingInterval(b), want) {
			out = append(out, b)
		}
	}
	return out, nil
}

// HasConflict reports whether slot overlaps any active booking other than excludeID.
func (d *ConflictDetector) HasConflict(ctx context.Context, slot models.TimeSlot, excludeID *uuid.UUID) (bool, error) {
	conflicts, err := d.Conflicts(ctx, slot, excludeID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}
