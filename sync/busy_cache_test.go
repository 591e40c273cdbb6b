// ABOUTME: Tests for the badger-backed busy-period cache
package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harperreed/consult/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCalendar struct {
	UnconfiguredCalendar
	lists  int
	writes int
	busy   []models.BusyPeriod
	err    error
}

func (c *countingCalendar) ListBusyPeriods(ctx context.Context, start, end time.Time) ([]models.BusyPeriod, error) {
	c.lists++
	return c.busy, c.err
}

func (c *countingCalendar) CreateEvent(ctx context.Context, b *models.Booking) (string, error) {
	c.writes++
	return "evt", nil
}

func (c *countingCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	c.writes++
	return nil
}

func newTestCache(t *testing.T, next *countingCalendar) *BusyCache {
	t.Helper()
	cache, err := OpenBusyCache(t.TempDir(), time.Minute, next, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestBusyCacheServesRepeatedRanges(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	next := &countingCalendar{busy: []models.BusyPeriod{
		{Start: start.Add(15 * time.Hour), End: start.Add(15*time.Hour + 30*time.Minute)},
	}}
	cache := newTestCache(t, next)
	ctx := context.Background()

	first, err := cache.ListBusyPeriods(ctx, start, end)
	require.NoError(t, err)
	second, err := cache.ListBusyPeriods(ctx, start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, next.lists)
	require.Len(t, second, 1)
	assert.True(t, first[0].Start.Equal(second[0].Start))

	_, err = cache.ListBusyPeriods(ctx, start, end.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, next.lists, "different ranges are cached separately")
}

func TestBusyCacheInvalidatesOnWrites(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	next := &countingCalendar{}
	cache := newTestCache(t, next)
	ctx := context.Background()

	_, err := cache.ListBusyPeriods(ctx, start, start.Add(time.Hour))
	require.NoError(t, err)

	_, err = cache.CreateEvent(ctx, testBooking())
	require.NoError(t, err)
	assert.Equal(t, 1, next.writes)

	_, err = cache.ListBusyPeriods(ctx, start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, next.lists)

	assert.ErrorIs(t, cache.UpdateEvent(ctx, "evt", testBooking()), ErrCalendarNotConfigured,
		"errors from the wrapped client pass through")
	require.NoError(t, cache.DeleteEvent(ctx, "evt"))
}

func TestBusyCacheDoesNotCacheErrors(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	next := &countingCalendar{err: errors.New("boom")}
	cache := newTestCache(t, next)

	_, err := cache.ListBusyPeriods(context.Background(), start, start.Add(time.Hour))
	assert.Error(t, err)

	next.err = nil
	_, err = cache.ListBusyPeriods(context.Background(), start, start.Add(time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, 2, next.lists)
}

func TestOpenBusyCacheInMemory(t *testing.T) {
	cache, err := OpenBusyCache("", time.Minute, &countingCalendar{}, nil)
	require.NoError(t, err)
	assert.NoError(t, cache.Close())
}

func TestOpenBusyCacheSharedDirFallsBackToMemory(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	first, err := OpenBusyCache(dir, time.Minute, &countingCalendar{}, nil)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	next := &countingCalendar{}
	second, err := OpenBusyCache(dir, time.Minute, next, nil)
	require.NoError(t, err, "a second process on the same directory still gets a cache")
	defer func() { _ = second.Close() }()

	for i := 0; i < 2; i++ {
		_, err = second.ListBusyPeriods(context.Background(), start, start.Add(time.Hour))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, next.lists, "the fallback cache still memoises")
}

func TestBusyCacheEventIDForDelegates(t *testing.T) {
	cache := newTestCache(t, &countingCalendar{})
	assert.Empty(t, cache.EventIDFor(testBooking().ID))
}
