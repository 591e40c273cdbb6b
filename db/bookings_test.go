// ABOUTME: Tests for the SQLite booking store
// ABOUTME: Covers overlap enforcement, lookups, range queries, counts, and sync flags
package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newBooking(start time.Time, d models.Duration, email string) *models.Booking {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	return &models.Booking{
		ID:        uuid.New(),
		Name:      "Ada Lovelace",
		Email:     email,
		StartTime: start,
		Duration:  d,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func slotAt(hour, minute int) time.Time {
	return time.Date(2024, 1, 15, hour, minute, 0, 0, time.UTC)
}

func TestInsertAndFindByID(t *testing.T) {
	store := NewBookingStore(setupTestDB(t))
	ctx := context.Background()

	b := newBooking(slotAt(14, 0), models.Duration60, "Ada@Example.com")
	b.Phone = "555-0100"
	b.Company = "Analytical Engines"
	b.Inquiry = "Difference engine consulting"
	require.NoError(t, store.Insert(ctx, b))

	got, err := store.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, b.StartTime, got.StartTime)
	assert.Equal(t, models.Duration60, got.Duration)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "Analytical Engines", got.Company)
	assert.Equal(t, b.CreatedAt, got.CreatedAt)
	assert.False(t, got.CalendarSynced)
	assert.Equal(t, slotAt(15, 0), got.EndTime())
}

func TestFindByIDNotFound(t *testing.T) {
	store := NewBookingStore(setupTestDB(t))

	_, err := store.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestInsertRejectsOverlap(t *testing.T) {
	store := NewBookingStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newBooking(slotAt(14, 0), models.Duration60, "a@example.com")))

	err := store.Insert(ctx, newBooking(slotAt(14, 30), models.Duration30, "b@example.com"))
	assert.ErrorIs(t, err, ErrSlotTaken)

	err = store.Insert(ctx, newBooking(slotAt(14, 0), models.Duration15, "c@example.com"))
	assert.ErrorIs(t, err, ErrSlotTaken)

	assert.NoError(t, store.Insert(ctx, newBooking(slotAt(15, 0), models.Duration30, "d@example.com")), "back-to-back is allowed")
	assert.NoError(t, store.Insert(ctx, newBooking(slotAt(13, 0), models.Duration60, "e@example.com")), "back-to-back is allowed")
}

func TestCancelledBookingFreesSlot(t *testing.T) {
	store := NewBookingStore(setupTestDB(t))
	ctx := context.Background()

	first := newBooking(slotAt(10, 0), models.Duration45, "a@example.com")
	require.NoError(t, store.Insert(ctx, first))

	first.Status = models.StatusCancelled
	require.NoError(t, store.UpdateByID(ctx, first, models.StatusPending))

	again := newBooking(slotAt(10, 0), models.Duration45, "a@example.com")
	assert.NoError(t, store.Insert(ctx, again))
}

func TestActiveStartIndexBacksOverlapCheck(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Bypass the store to emulate a writer that skipped the overlap check.
	insert := func(id uuid.UUID, status string) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO bookings (id, name, email, start_at, duration_minutes, status, created_at, updated_at)
			VALUES (?, 'x', 'x@example.com', ?, 30, ?, 0, 0)
		`, id.String(), slotAt(9, 0).Unix(), status)
		return err
	}

	require.NoError(t, insert(uuid.New(), "pending"))
	require.NoError(t, insert(uuid.New(), "cancelled"))

	err := insert(uuid.New(), "confirmed")
	require.Error(t, err)
	var sqliteErr sqlite3.Error
	require.True(t, errors.As(err, &sqliteErr))
	assert.Equal(t, sqlite3.ErrConstraintUnique, sqliteErr.ExtendedCode)
	assert.True(t, isUniqueViolation(err))
}

func TestConcurrentInsertsSameSlot(t *testing.T) {
	store := NewBookingStore(setupTestDB(t))
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Insert(ctx, newBooking(slotAt(11, 0), models.Duration30, "race@example.com"))
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotTaken)
	}
	assert.Equal(t, 1, succeeded)
}

func TestUpdateByID(t *testing.T) {
	store := NewBookingStore(setupTestDB(t))
	ctx := context.Background()

	a := newBooking(slotAt(9, 0), models.Duration60, "a@example.com")
	b := newBooking(slotAt(11, 0), models.Duration60, "b@example.com")
	require.NoError(t, store.Insert(ctx, a))
	require.NoError(t, store.Insert(ctx, b))

	// Moving within its own slot does not conflict with itself.
	a.StartTime = slotAt(9, 30)
	require.NoError(t, store.UpdateByID(ctx, a, models.StatusPending))

	// Moving onto b conflicts.
	a.StartTime = slotAt(11, 30)
	assert.ErrorIs(t, store.UpdateByID(ctx, a, models.StatusPending), ErrSlotTaken)

	got, err := store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, slotAt(9, 30), got.StartTime, "failed update leaves the row untouched")

	missing := newBooking(slotAt(16, 0), models.Duration15, "c@example.com")
	assert.ErrorIs(t, store.UpdateByID(ctx, missing, models.StatusPending), ErrBookingNotFound)
}

func TestUpdateByIDRejectsStaleStatus(t *testing.T) {
	store := NewBookingStore(setupTestDB(t))
	ctx := context.Background()

	b := newBooking(slotAt(9, 0), models.Duration30, "a@example.com")
	require.NoError(t, store.Insert(ctx, b))

	cancelled := *b
	cancelled.Status = models.StatusCancelled
	require.NoError(t, store.UpdateByID(ctx, &cancelled, models.StatusPending))

	// A writer that read the booking while it was still pending.
	stale := *b
	stale.Name = "Renamed"
	err := store.UpdateByID(ctx, &stale, models.StatusPending)
	assert.ErrorIs(t, err, ErrBookingChanged)
	assert.False(t, IsTransient(err))

	got, err := store.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status, "cancelled booking stays cancelled")
	assert.Equal(t, b.Name, got.Name)
}

func TestFindOverlappingCandidates(t *testing.T) {
	store := NewBookingStore(setupTestDB(t))
	ctx := context.Background()

	early := newBooking(slotAt(9, 0), models.Duration60, "a@example.com")
	mid := newBooking(slotAt(10, 30), models.Duration30, "b@example.com")
	late := newBooking(slotAt(13, 0), models.Duration60, "c@example.com")
	cancelled := newBooking(slotAt(11, 15), models.Duration15, "d@example.com")
	cancelled.Status = models.StatusCancelled
	for _, b := range []*models.Booking{early, mid, late, cancelled} {
		require.NoError(t, store.Insert(ctx, b))
	}

	got, err := store.FindOverlappingCandidates(ctx, slotAt(12, 0), slotAt(10, 0), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mid.ID, got[0].ID)

	got, err = store.FindOverlappingCandidates(ctx, slotAt(12, 0), slotAt(8, 0), &mid.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, early.ID, got[0].ID)
}

func TestCountByEmailSince(t *testing.T) {
	store := NewBookingStore(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	for i, created := range []time.Duration{0, 30 * time.Minute, 2 * time.Hour} {
		b := newBooking(slotAt(9+i, 0), models.Duration15, "Ada@Example.com")
		b.CreatedAt = base.Add(created)
		b.UpdatedAt = b.CreatedAt
		require.NoError(t, store.Insert(ctx, b))
	}
	other := newBooking(slotAt(15, 0), models.Duration15, "someone@example.com")
	require.NoError(t, store.Insert(ctx, other))

	count, err := store.CountByEmailSince(ctx, "ADA@example.com", base)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = store.CountByEmailSince(ctx, "ada@example.com", base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count, "since is inclusive")

	count, err = store.CountByEmailSince(ctx, "ada@example.com", base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFindInRange(t *testing.T) {
	store := NewBookingStore(setupTestDB(t))
	ctx := context.Background()

	a := newBooking(slotAt(9, 0), models.Duration60, "a@example.com")
	b := newBooking(slotAt(12, 0), models.Duration30, "b@example.com")
	b.Status = models.StatusCancelled
	c := newBooking(time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC), models.Duration30, "c@example.com")
	for _, bk := range []*models.Booking{a, b, c} {
		require.NoError(t, store.Insert(ctx, bk))
	}

	got, err := store.FindInRange(ctx, slotAt(9, 30), slotAt(23, 0))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID, "a booking running into the range is included")
	assert.Equal(t, b.ID, got[1].ID)
}

func TestSyncStateAndFindNeedingSync(t *testing.T) {
	store := NewBookingStore(setupTestDB(t))
	ctx := context.Background()

	synced := newBooking(slotAt(9, 0), models.Duration30, "a@example.com")
	pending := newBooking(slotAt(10, 0), models.Duration30, "b@example.com")
	cancelled := newBooking(slotAt(11, 0), models.Duration30, "c@example.com")
	cancelled.Status = models.StatusCancelled
	for _, b := range []*models.Booking{synced, pending, cancelled} {
		require.NoError(t, store.Insert(ctx, b))
	}

	stamp := slotAt(8, 0)
	require.NoError(t, store.UpdateSyncState(ctx, synced.ID, models.SyncState{
		CalendarSynced:  true,
		CRMSynced:       true,
		CalendarEventID: "evt1",
		CRMContactID:    "c1",
	}, stamp))

	got, err := store.FindByID(ctx, synced.ID)
	require.NoError(t, err)
	assert.Equal(t, stamp, got.UpdatedAt)
	assert.True(t, got.CalendarSynced)
	assert.Equal(t, "evt1", got.CalendarEventID)

	needing, err := store.FindNeedingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, needing, 1)
	assert.Equal(t, pending.ID, needing[0].ID)

	require.NoError(t, store.UpdateSyncState(ctx, cancelled.ID, models.SyncState{RequiresManualCalendarSync: true, CalendarEventID: "evt2"}, stamp))
	needing, err = store.FindNeedingSync(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, needing, 2)

	assert.ErrorIs(t, store.UpdateSyncState(ctx, uuid.New(), models.SyncState{}, stamp), ErrBookingNotFound)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, IsTransient(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(ErrSlotTaken))
	assert.False(t, IsTransient(ErrBookingNotFound))
	assert.False(t, IsTransient(ErrBookingChanged))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.False(t, IsTransient(errors.New("syntax error")))
}
