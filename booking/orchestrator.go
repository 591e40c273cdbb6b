// ABOUTME: Booking use-case layer wiring limits, conflict checks, persistence, and external syncs
// ABOUTME: Owns one circuit breaker per external dependency and a shared retrier
package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harperreed/consult/db"
	"github.com/harperreed/consult/models"
	"github.com/harperreed/consult/resilience"
	"github.com/harperreed/consult/scheduling"
	"github.com/oklog/ulid/v2"
)

// Deps are the collaborators an Orchestrator drives. All are required.
type Deps struct {
	Store    Store
	Calendar CalendarClient
	CRM      CRMClient
	Notifier Notifier
	Logger   *log.Logger
}

type Orchestrator struct {
	cfg Config

	store    Store
	calendar CalendarClient
	crm      CRMClient
	notifier Notifier

	availability *scheduling.AvailabilityEngine
	conflicts    *scheduling.ConflictDetector
	frequency    *scheduling.FrequencyLimiter

	calendarBreaker *resilience.Breaker
	crmBreaker      *resilience.Breaker
	retrier         *resilience.Retrier

	logger *log.Logger
	now    func() time.Time
}

// New validates cfg and builds an orchestrator with fresh breakers.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid booking config: %w", err)
	}
	if deps.Store == nil || deps.Calendar == nil || deps.CRM == nil || deps.Notifier == nil {
		return nil, errors.New("booking orchestrator requires store, calendar, crm, and notifier")
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	calendarBreaker, err := resilience.NewBreaker(cfg.CalendarBreaker, logger)
	if err != nil {
		return nil, err
	}
	crmBreaker, err := resilience.NewBreaker(cfg.CRMBreaker, logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:             cfg,
		store:           deps.Store,
		calendar:        deps.Calendar,
		crm:             deps.CRM,
		notifier:        deps.Notifier,
		availability:    scheduling.NewAvailabilityEngine(),
		conflicts:       scheduling.NewConflictDetector(deps.Store),
		frequency:       scheduling.NewFrequencyLimiter(deps.Store, cfg.Frequency),
		calendarBreaker: calendarBreaker,
		crmBreaker:      crmBreaker,
		retrier:         resilience.NewRetrier(logger),
		logger:          logger.WithPrefix("booking"),
		now:             time.Now,
	}, nil
}

// SetClock replaces the time source of the orchestrator and everything it owns.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
	o.availability.SetClock(now)
	o.frequency.SetClock(now)
	o.calendarBreaker.SetClock(now)
	o.crmBreaker.SetClock(now)
}

// SetSleep replaces the wait between retry attempts.
func (o *Orchestrator) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	o.retrier = o.retrier.WithSleep(sleep)
}

// Config returns the active configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// BreakerStats reports every dependency breaker.
func (o *Orchestrator) BreakerStats() []resilience.BreakerStats {
	return []resilience.BreakerStats{o.calendarBreaker.Stats(), o.crmBreaker.Stats()}
}

// ResetBreaker forces the named breaker closed.
func (o *Orchestrator) ResetBreaker(name string) error {
	for _, b := range []*resilience.Breaker{o.calendarBreaker, o.crmBreaker} {
		if b.Name() == name {
			b.Reset()
			return nil
		}
	}
	return fmt.Errorf("unknown breaker %q", name)
}

// GetAvailableSlots lists open slots of the given duration in [start, end).
// Calendar busy time is best effort: if it cannot be read, only stored
// bookings block slots.
func (o *Orchestrator) GetAvailableSlots(ctx context.Context, start, end time.Time, duration models.Duration) ([]models.TimeSlot, error) {
	logger := o.opLogger("slots")

	if !duration.Valid() {
		return nil, &ValidationError{Field: "duration", Reason: "must be one of 15, 30, 45, 60 minutes"}
	}
	if err := scheduling.ValidateRange(start, end, o.cfg.Hours); err != nil {
		return nil, &ValidationError{Field: "range", Reason: err.Error()}
	}

	pad := o.cfg.Hours.Buffer()
	from, to := start.Add(-pad), end.Add(pad)

	bookings, err := resilience.Do(ctx, o.retrier, "store.find_in_range", o.storePolicy(), func(ctx context.Context) ([]*models.Booking, error) {
		return o.store.FindInRange(ctx, from, to)
	})
	if err != nil {
		return nil, &ServiceUnavailableError{Op: "list bookings", Err: err}
	}

	busy, err := callExternal(ctx, o, o.calendarBreaker, "calendar.list_busy", o.cfg.CalendarRetry, func(ctx context.Context) ([]models.BusyPeriod, error) {
		return o.calendar.ListBusyPeriods(ctx, from, to)
	})
	if err != nil {
		logger.Warn("calendar busy periods unavailable, using stored bookings only", "err", err)
		busy = nil
	}

	slots, err := o.availability.Slots(scheduling.SlotQuery{
		RangeStart: start,
		RangeEnd:   end,
		Duration:   duration,
		Hours:      o.cfg.Hours,
		Bookings:   bookings,
		Busy:       busy,
	})
	if err != nil {
		return nil, &ValidationError{Field: "range", Reason: err.Error()}
	}

	logger.Debug("computed availability", "start", start, "end", end, "duration", duration, "slots", len(slots))
	return slots, nil
}

// GetBooking loads one booking.
func (o *Orchestrator) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := o.load(ctx, id)
	if errors.Is(err, db.ErrBookingNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, &ServiceUnavailableError{Op: "get booking", Err: err}
	}
	return b, nil
}

// ListBookings returns bookings of any status intersecting [start, end).
func (o *Orchestrator) ListBookings(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	if !start.Before(end) {
		return nil, &ValidationError{Field: "range", Reason: "start must be before end"}
	}
	bookings, err := resilience.Do(ctx, o.retrier, "store.find_in_range", o.storePolicy(), func(ctx context.Context) ([]*models.Booking, error) {
		return o.store.FindInRange(ctx, start, end)
	})
	if err != nil {
		return nil, &ServiceUnavailableError{Op: "list bookings", Err: err}
	}
	return bookings, nil
}

// NeedingSync lists bookings an external system is behind on.
func (o *Orchestrator) NeedingSync(ctx context.Context, limit int) ([]*models.Booking, error) {
	bookings, err := resilience.Do(ctx, o.retrier, "store.find_needing_sync", o.storePolicy(), func(ctx context.Context) ([]*models.Booking, error) {
		return o.store.FindNeedingSync(ctx, limit)
	})
	if err != nil {
		return nil, &ServiceUnavailableError{Op: "list bookings needing sync", Err: err}
	}
	return bookings, nil
}

func (o *Orchestrator) opLogger(action string) *log.Logger {
	return o.logger.With("op", ulid.Make().String(), "action", action)
}

func (o *Orchestrator) storePolicy() resilience.RetryPolicy {
	if o.cfg.StoreRetry.IsRetryable != nil {
		return o.cfg.StoreRetry
	}
	return o.cfg.StoreRetry.WithClassifier(db.IsTransient)
}

func (o *Orchestrator) load(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return resilience.Do(ctx, o.retrier, "store.find_by_id", o.storePolicy(), func(ctx context.Context) (*models.Booking, error) {
		return o.store.FindByID(ctx, id)
	})
}

// timestamp is the current time at the store's precision.
func (o *Orchestrator) timestamp() time.Time {
	return o.now().UTC().Truncate(time.Second)
}

// callExternal runs fn as Retry(Breaker(timeout(fn))). Each attempt counts
// toward the breaker; a breaker rejection ends the retry loop at once.
func callExternal[T any](ctx context.Context, o *Orchestrator, breaker *resilience.Breaker, name string, policy resilience.RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	classify := policy.IsRetryable
	policy = policy.WithClassifier(func(err error) bool {
		if errors.Is(err, resilience.ErrBreakerOpen) || errors.Is(err, context.Canceled) {
			return false
		}
		if classify == nil {
			return true
		}
		return classify(err)
	})

	return resilience.Do(ctx, o.retrier, name, policy, func(ctx context.Context) (T, error) {
		return resilience.Execute(ctx, breaker, func(ctx context.Context) (T, error) {
			callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
			defer cancel()
			return fn(callCtx)
		})
	})
}
