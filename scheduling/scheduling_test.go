// ABOUTME: Tests for interval math, availability, conflict detection, and frequency limits
// ABOUTME: Uses in-memory fakes for the store queries
package scheduling

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 15, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", Interval{at(10, 0), at(11, 0)}, Interval{at(10, 0), at(11, 0)}, true},
		{"partial", Interval{at(10, 0), at(11, 0)}, Interval{at(10, 30), at(11, 30)}, true},
		{"contained", Interval{at(10, 0), at(12, 0)}, Interval{at(10, 30), at(11, 0)}, true},
		{"touching end", Interval{at(10, 0), at(11, 0)}, Interval{at(11, 0), at(12, 0)}, false},
		{"touching start", Interval{at(11, 0), at(12, 0)}, Interval{at(10, 0), at(11, 0)}, false},
		{"disjoint", Interval{at(9, 0), at(9, 30)}, Interval{at(10, 0), at(11, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "overlap is symmetric")
		})
	}
}

func testHours() models.BusinessHours {
	h := models.DefaultBusinessHours()
	h.MinAdvanceHours = 0
	h.MaxAdvanceHours = 0
	return h
}

func engineAt(now time.Time) *AvailabilityEngine {
	e := NewAvailabilityEngine()
	e.SetClock(func() time.Time { return now })
	return e
}

func TestSlotsRejectsBadRange(t *testing.T) {
	e := engineAt(at(0, 0))

	_, err := e.Slots(SlotQuery{RangeStart: at(12, 0), RangeEnd: at(12, 0), Duration: models.Duration30, Hours: testHours()})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = e.Slots(SlotQuery{RangeStart: at(12, 0), RangeEnd: at(9, 0), Duration: models.Duration30, Hours: testHours()})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = e.Slots(SlotQuery{RangeStart: at(0, 0), RangeEnd: at(0, 0).AddDate(0, 0, 31), Duration: models.Duration30, Hours: testHours()})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = e.Slots(SlotQuery{RangeStart: at(0, 0), RangeEnd: at(23, 0), Duration: models.Duration(20), Hours: testHours()})
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestSlotsFullDay(t *testing.T) {
	e := engineAt(at(0, 0))

	slots, err := e.Slots(SlotQuery{
		RangeStart: at(0, 0),
		RangeEnd:   at(23, 59),
		Duration:   models.Duration60,
		Hours:      testHours(),
	})
	require.NoError(t, err)
	require.Len(t, slots, 8)
	assert.Equal(t, at(9, 0), slots[0].Start)
	assert.Equal(t, at(16, 0), slots[7].Start)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Start.Before(slots[i].Start), "slots are chronological")
	}
}

func TestSlotsSkipsWeekends(t *testing.T) {
	e := engineAt(at(0, 0))

	saturday := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	slots, err := e.Slots(SlotQuery{
		RangeStart: saturday,
		RangeEnd:   saturday.Add(48 * time.Hour),
		Duration:   models.Duration60,
		Hours:      testHours(),
	})
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.NotNil(t, slots, "empty result is a list, not nil")
}

func TestSlotsRespectMinAdvance(t *testing.T) {
	now := at(8, 0)
	e := engineAt(now)
	hours := testHours()
	hours.MinAdvanceHours = 4

	slots, err := e.Slots(SlotQuery{RangeStart: at(0, 0), RangeEnd: at(23, 0), Duration: models.Duration60, Hours: hours})
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for _, s := range slots {
		assert.False(t, s.Start.Before(now.Add(4*time.Hour)), "slot %s starts before min advance", s.Start)
	}
	assert.Equal(t, at(12, 0), slots[0].Start)
}

func TestSlotsRespectMaxAdvance(t *testing.T) {
	e := engineAt(at(0, 0))
	hours := testHours()
	hours.MaxAdvanceHours = 11

	slots, err := e.Slots(SlotQuery{RangeStart: at(0, 0), RangeEnd: at(23, 0), Duration: models.Duration60, Hours: hours})
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, at(11, 0), slots[2].Start)
}

func TestSlotsApplyBufferAroundBookings(t *testing.T) {
	e := engineAt(at(0, 0))
	hours := testHours()
	hours.BufferMinutes = 15

	bookings := []*models.Booking{
		{ID: uuid.New(), StartTime: at(11, 0), Duration: models.Duration60, Status: models.StatusConfirmed},
		{ID: uuid.New(), StartTime: at(14, 0), Duration: models.Duration60, Status: models.StatusCancelled},
	}

	slots, err := e.Slots(SlotQuery{RangeStart: at(0, 0), RangeEnd: at(23, 0), Duration: models.Duration60, Hours: hours, Bookings: bookings})
	require.NoError(t, err)

	starts := slotStarts(slots)
	assert.NotContains(t, starts, at(10, 0), "buffer reaches into the 11:00 booking")
	assert.NotContains(t, starts, at(11, 0))
	assert.NotContains(t, starts, at(12, 0), "buffer reaches back to 12:00 end")
	assert.Contains(t, starts, at(9, 0))
	assert.Contains(t, starts, at(13, 0))
	assert.Contains(t, starts, at(14, 0), "cancelled bookings free their slot")
}

func TestSlotsExcludeBusyPeriods(t *testing.T) {
	e := engineAt(at(0, 0))

	hours := testHours()
	hours.BufferMinutes = 0

	busy := []models.BusyPeriod{{Start: at(9, 30), End: at(10, 0)}}
	slots, err := e.Slots(SlotQuery{RangeStart: at(0, 0), RangeEnd: at(23, 0), Duration: models.Duration30, Hours: hours, Busy: busy})
	require.NoError(t, err)

	starts := slotStarts(slots)
	assert.NotContains(t, starts, at(9, 30))
	assert.Contains(t, starts, at(9, 0), "touching busy period is not blocked without buffer")
	assert.Contains(t, starts, at(10, 0))

	for _, s := range slots {
		for _, p := range busy {
			assert.False(t, Overlaps(SlotInterval(s), BusyInterval(p)))
		}
	}
}

func TestSlotsUseBusinessTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	e := engineAt(at(0, 0))
	hours := testHours()
	hours.Location = ny

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, ny)
	slots, err := e.Slots(SlotQuery{RangeStart: day, RangeEnd: day.Add(24 * time.Hour), Duration: models.Duration60, Hours: hours})
	require.NoError(t, err)
	require.Len(t, slots, 8)
	assert.Equal(t, at(14, 0), slots[0].Start, "09:00 New York is 14:00 UTC")
	assert.Equal(t, time.UTC, slots[0].Start.Location())
}

func TestSlotsRangeBoundsCandidates(t *testing.T) {
	e := engineAt(at(0, 0))

	slots, err := e.Slots(SlotQuery{RangeStart: at(10, 0), RangeEnd: at(12, 0), Duration: models.Duration30, Hours: testHours()})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(10, 0), at(10, 30), at(11, 0), at(11, 30)}, slotStarts(slots))
}

func slotStarts(slots []models.TimeSlot) []time.Time {
	out := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start)
	}
	return out
}

type fakeFinder struct {
	bookings  []*models.Booking
	beforeEnd time.Time
	notBefore time.Time
	err       error
}

func (f *fakeFinder) FindOverlappingCandidates(ctx context.Context, beforeEnd, notBefore time.Time, excludeID *uuid.UUID) ([]*models.Booking, error) {
	f.beforeEnd, f.notBefore = beforeEnd, notBefore
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Booking
	for _, b := range f.bookings {
		if b.StartTime.Before(beforeEnd) && !b.StartTime.Before(notBefore) {
			out = append(out, b)
		}
	}
	return out, nil
}

func TestConflictDetector(t *testing.T) {
	existing := &models.Booking{ID: uuid.New(), StartTime: at(14, 0), Duration: models.Duration60, Status: models.StatusPending}
	cancelled := &models.Booking{ID: uuid.New(), StartTime: at(16, 0), Duration: models.Duration60, Status: models.StatusCancelled}
	store := &fakeFinder{bookings: []*models.Booking{existing, cancelled}}
	d := NewConflictDetector(store)
	ctx := context.Background()

	tests := []struct {
		name    string
		slot    models.TimeSlot
		exclude *uuid.UUID
		want    bool
	}{
		{"same slot", models.TimeSlot{Start: at(14, 0), Duration: models.Duration60}, nil, true},
		{"starts inside", models.TimeSlot{Start: at(14, 45), Duration: models.Duration30}, nil, true},
		{"ends inside", models.TimeSlot{Start: at(13, 30), Duration: models.Duration45}, nil, true},
		{"back to back after", models.TimeSlot{Start: at(15, 0), Duration: models.Duration60}, nil, false},
		{"back to back before", models.TimeSlot{Start: at(13, 0), Duration: models.Duration60}, nil, false},
		{"cancelled slot is free", models.TimeSlot{Start: at(16, 0), Duration: models.Duration60}, nil, false},
		{"excluding itself", models.TimeSlot{Start: at(14, 30), Duration: models.Duration60}, &existing.ID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.HasConflict(ctx, tt.slot, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConflictDetectorQueryBounds(t *testing.T) {
	store := &fakeFinder{}
	d := NewConflictDetector(store)

	slot := models.TimeSlot{Start: at(14, 0), Duration: models.Duration30}
	_, err := d.HasConflict(context.Background(), slot, nil)
	require.NoError(t, err)
	assert.Equal(t, at(14, 30), store.beforeEnd)
	assert.Equal(t, at(13, 0), store.notBefore)
}

func TestConflictDetectorStoreError(t *testing.T) {
	boom := errors.New("disk on fire")
	d := NewConflictDetector(&fakeFinder{err: boom})

	_, err := d.HasConflict(context.Background(), models.TimeSlot{Start: at(9, 0), Duration: models.Duration15}, nil)
	assert.ErrorIs(t, err, boom)
}

type fakeCounter struct {
	created map[string][]time.Time
}

func (f *fakeCounter) CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error) {
	n := 0
	for _, c := range f.created[strings.ToLower(email)] {
		if !c.Before(since) {
			n++
		}
	}
	return n, nil
}

func TestFrequencyLimiterRollingWindow(t *testing.T) {
	start := at(9, 0)
	now := start
	counter := &fakeCounter{created: map[string][]time.Time{}}
	limiter := NewFrequencyLimiter(counter, models.FrequencyPolicy{
		models.Duration15: {Limit: 2, Window: 90 * time.Minute},
	})
	limiter.SetClock(func() time.Time { return now })
	ctx := context.Background()

	book := func(email string) FrequencyDecision {
		d, err := limiter.CheckAndCount(ctx, email, models.Duration15)
		require.NoError(t, err)
		if d.Allowed {
			counter.created["ada@example.com"] = append(counter.created["ada@example.com"], now)
		}
		return d
	}

	assert.True(t, book("ada@example.com").Allowed)
	now = start.Add(10 * time.Minute)
	assert.True(t, book("Ada@Example.com").Allowed)

	now = start.Add(30 * time.Minute)
	third := book("ADA@example.com")
	assert.False(t, third.Allowed)
	assert.Equal(t, 2, third.CurrentCount)
	assert.Equal(t, 2, third.Limit)
	assert.Equal(t, now.Add(-90*time.Minute), third.WindowStart)
	assert.Equal(t, now, third.WindowEnd)

	now = start.Add(91 * time.Minute)
	assert.True(t, book("ada@example.com").Allowed, "first booking has left the window")
}

func TestFrequencyLimiterUnknownTier(t *testing.T) {
	limiter := NewFrequencyLimiter(&fakeCounter{}, models.FrequencyPolicy{})
	_, err := limiter.CheckAndCount(context.Background(), "x@example.com", models.Duration30)
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestParseTime(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	got, err := ParseTime("2024-01-15T14:00:00Z", chicago)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC), got)

	got, err = ParseTime("2024-01-15T08:00", chicago)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC), got, "offset-free times are read in the business timezone")

	got, err = ParseTime("2024-01-15 14:00", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC), got)

	_, err = ParseTime("next tuesday", time.UTC)
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	start, end, err := ParseRange("2024-01-15", "2024-01-16", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), end, "plain end dates are inclusive")

	start, end, err = ParseRange("2024-01-15T09:00:00Z", "2024-01-15T12:00:00Z", nil)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, end.Sub(start))

	_, _, err = ParseRange("2024-01-15", "tomorrow", nil)
	assert.Error(t, err)
}
