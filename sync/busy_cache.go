// ABOUTME: Badger-backed TTL cache in front of a calendar's free/busy lookups
// ABOUTME: Any event write through the cache drops every cached range
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/harperreed/consult/booking"
	"github.com/harperreed/consult/models"
)

var busyPrefix = []byte("busy/")

// BusyCache wraps a calendar client and memoises ListBusyPeriods.
type BusyCache struct {
	next   booking.CalendarClient
	db     *badger.DB
	ttl    time.Duration
	logger *log.Logger
}

// OpenBusyCache opens the cache at dir, or in memory when dir is empty.
// Badger allows one process per directory, so when dir is held by another
// consult process (serve, mcp) the cache falls back to memory.
func OpenBusyCache(dir string, ttl time.Duration, next booking.CalendarClient, logger *log.Logger) (*BusyCache, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.WithPrefix("busy-cache")

	memory := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)

	opts := memory
	if dir != "" {
		opts = badger.DefaultOptions(dir).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil && dir != "" {
		logger.Warn("busy cache directory unavailable, caching in memory", "dir", dir, "err", err)
		db, err = badger.Open(memory)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open busy cache: %w", err)
	}

	return &BusyCache{next: next, db: db, ttl: ttl, logger: logger}, nil
}

func (c *BusyCache) Close() error {
	return c.db.Close()
}

func busyKey(start, end time.Time) []byte {
	return []byte(fmt.Sprintf("%s%d-%d", busyPrefix, start.Unix(), end.Unix()))
}

func (c *BusyCache) ListBusyPeriods(ctx context.Context, start, end time.Time) ([]models.BusyPeriod, error) {
	key := busyKey(start, end)

	var cached []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		cached, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case err == nil:
		var periods []models.BusyPeriod
		if err := json.Unmarshal(cached, &periods); err == nil {
			return periods, nil
		}
		c.logger.Warn("discarding unreadable cache entry", "key", string(key))
	case !errors.Is(err, badger.ErrKeyNotFound):
		c.logger.Warn("busy cache read failed", "err", err)
	}

	periods, err := c.next.ListBusyPeriods(ctx, start, end)
	if err != nil {
		return nil, err
	}

	value, err := json.Marshal(periods)
	if err == nil {
		err = c.db.Update(func(txn *badger.Txn) error {
			return txn.SetEntry(badger.NewEntry(key, value).WithTTL(c.ttl))
		})
	}
	if err != nil {
		c.logger.Warn("busy cache write failed", "err", err)
	}
	return periods, nil
}

func (c *BusyCache) CreateEvent(ctx context.Context, b *models.Booking) (string, error) {
	id, err := c.next.CreateEvent(ctx, b)
	c.invalidate()
	return id, err
}

func (c *BusyCache) UpdateEvent(ctx context.Context, eventID string, b *models.Booking) error {
	err := c.next.UpdateEvent(ctx, eventID, b)
	c.invalidate()
	return err
}

func (c *BusyCache) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.next.DeleteEvent(ctx, eventID)
	c.invalidate()
	return err
}

func (c *BusyCache) EventIDFor(bookingID uuid.UUID) string {
	return c.next.EventIDFor(bookingID)
}

func (c *BusyCache) invalidate() {
	if err := c.db.DropPrefix(busyPrefix); err != nil {
		c.logger.Warn("busy cache invalidation failed", "err", err)
	}
}
