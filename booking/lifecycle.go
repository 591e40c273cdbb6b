// ABOUTME: Create, update, and cancel flows for a single booking
// ABOUTME: Validation and conflicts reject before the write; everything after it degrades to sync flags
package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harperreed/consult/db"
	"github.com/harperreed/consult/models"
	"github.com/harperreed/consult/resilience"
	"github.com/harperreed/consult/scheduling"
)

// CreateRequest is a new booking request.
type CreateRequest struct {
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone,omitempty"`
	Company   string          `json:"company,omitempty"`
	Inquiry   string          `json:"inquiry,omitempty"`
	StartTime time.Time       `json:"start_time"`
	Duration  models.Duration `json:"duration"`
}

// UpdateRequest changes an existing booking. Nil fields are left alone.
type UpdateRequest struct {
	StartTime *time.Time       `json:"start_time,omitempty"`
	Duration  *models.Duration `json:"duration,omitempty"`
	Status    *models.Status   `json:"status,omitempty"`
	Name      *string          `json:"name,omitempty"`
	Phone     *string          `json:"phone,omitempty"`
	Company   *string          `json:"company,omitempty"`
	Inquiry   *string          `json:"inquiry,omitempty"`
}

func (r UpdateRequest) empty() bool {
	return r.Status == nil && !r.otherThanStatus()
}

func (r UpdateRequest) otherThanStatus() bool {
	return r.StartTime != nil || r.Duration != nil ||
		r.Name != nil || r.Phone != nil || r.Company != nil || r.Inquiry != nil
}

// CreateBooking runs the full create flow. The returned error is non-nil only
// when the booking could not be persisted.
func (o *Orchestrator) CreateBooking(ctx context.Context, req CreateRequest) (Result, error) {
	logger := o.opLogger("create")

	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return invalid("name", "is required"), nil
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return invalid("email", "must be a valid address"), nil
	}
	if !req.Duration.Valid() {
		return invalid("duration", "must be one of 15, 30, 45, 60 minutes"), nil
	}

	slot := models.TimeSlot{Start: req.StartTime.UTC(), Duration: req.Duration}
	if res, ok := o.validateSlot(slot); !ok {
		return res, nil
	}

	decision, err := resilience.Do(ctx, o.retrier, "store.count_by_email", o.storePolicy(), func(ctx context.Context) (scheduling.FrequencyDecision, error) {
		return o.frequency.CheckAndCount(ctx, email, req.Duration)
	})
	if err != nil {
		return Result{}, &ServiceUnavailableError{Op: "check booking frequency", Err: err}
	}
	if !decision.Allowed {
		logger.Info("booking rejected by frequency limit", "email", email, "count", decision.CurrentCount, "limit", decision.Limit)
		return rateLimited(email, decision), nil
	}

	taken, err := resilience.Do(ctx, o.retrier, "store.find_overlapping", o.storePolicy(), func(ctx context.Context) (bool, error) {
		return o.conflicts.HasConflict(ctx, slot, nil)
	})
	if err != nil {
		return Result{}, &ServiceUnavailableError{Op: "check conflicts", Err: err}
	}
	if taken {
		logger.Info("booking rejected by conflict", "start", slot.Start, "duration", slot.Duration)
		return conflict(slot), nil
	}

	now := o.timestamp()
	b := &models.Booking{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Company:   strings.TrimSpace(req.Company),
		Inquiry:   strings.TrimSpace(req.Inquiry),
		StartTime: slot.Start,
		Duration:  req.Duration,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = resilience.Run(ctx, o.retrier, "store.insert", o.storePolicy(), func(ctx context.Context) error {
		return o.store.Insert(ctx, b)
	})
	if errors.Is(err, db.ErrSlotTaken) {
		logger.Info("booking lost the slot at write time", "start", slot.Start)
		return conflict(slot), nil
	}
	if err != nil {
		logger.Error("failed to persist booking", "err", err)
		return Result{}, &ServiceUnavailableError{Op: "create booking", Err: err}
	}

	logger = logger.With("booking_id", b.ID)
	logger.Info("booking persisted", "start", b.StartTime, "duration", b.Duration)

	o.createCalendarEvent(ctx, logger, b)
	o.syncCRM(ctx, logger, b, models.InteractionBooked)
	b.ConfirmationSent = o.notify(ctx, logger, b, models.TemplateConfirmation, nil)
	o.persistSync(ctx, logger, b)

	logger.Info("booking created",
		"calendar_synced", b.CalendarSynced,
		"crm_synced", b.CRMSynced,
		"confirmation_sent", b.ConfirmationSent)
	return Result{Outcome: OutcomeBooked, Booking: b}, nil
}

// UpdateBooking reschedules or edits a booking. A status change to
// cancelled runs the cancel flow.
func (o *Orchestrator) UpdateBooking(ctx context.Context, id uuid.UUID, req UpdateRequest) (Result, error) {
	if req.Status != nil && *req.Status == models.StatusCancelled {
		if req.otherThanStatus() {
			return invalid("status", "cancel cannot be combined with other changes"), nil
		}
		return o.CancelBooking(ctx, id)
	}

	logger := o.opLogger("update").With("booking_id", id)

	if req.empty() {
		return invalid("", "no changes requested"), nil
	}

	existing, err := o.load(ctx, id)
	if errors.Is(err, db.ErrBookingNotFound) {
		return notFound(id), nil
	}
	if err != nil {
		return Result{}, &ServiceUnavailableError{Op: "load booking", Err: err}
	}

	updated := *existing
	previousStart := existing.StartTime

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return invalid("name", "cannot be empty"), nil
		}
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Company != nil {
		updated.Company = strings.TrimSpace(*req.Company)
	}
	if req.Inquiry != nil {
		updated.Inquiry = strings.TrimSpace(*req.Inquiry)
	}
	if req.StartTime != nil {
		updated.StartTime = req.StartTime.UTC()
	}
	if req.Duration != nil {
		if !req.Duration.Valid() {
			return invalid("duration", "must be one of 15, 30, 45, 60 minutes"), nil
		}
		updated.Duration = *req.Duration
	}

	statusChanged := false
	if req.Status != nil && *req.Status != existing.Status {
		if !existing.Status.CanTransitionTo(*req.Status) {
			return invalid("status", fmt.Sprintf("cannot change from %s to %s", existing.Status, *req.Status)), nil
		}
		updated.Status = *req.Status
		statusChanged = true
	}

	rescheduled := !updated.StartTime.Equal(existing.StartTime) || updated.Duration != existing.Duration
	if rescheduled {
		if existing.Status.Terminal() {
			return invalid("status", fmt.Sprintf("a %s booking cannot be rescheduled", existing.Status)), nil
		}

		slot := updated.Slot()
		if res, ok := o.validateSlot(slot); !ok {
			return res, nil
		}

		taken, err := resilience.Do(ctx, o.retrier, "store.find_overlapping", o.storePolicy(), func(ctx context.Context) (bool, error) {
			return o.conflicts.HasConflict(ctx, slot, &id)
		})
		if err != nil {
			return Result{}, &ServiceUnavailableError{Op: "check conflicts", Err: err}
		}
		if taken {
			logger.Info("reschedule rejected by conflict", "start", slot.Start, "duration", slot.Duration)
			return conflict(slot), nil
		}
	}
	updated.UpdatedAt = o.timestamp()

	err = resilience.Run(ctx, o.retrier, "store.update", o.storePolicy(), func(ctx context.Context) error {
		return o.store.UpdateByID(ctx, &updated, existing.Status)
	})
	switch {
	case errors.Is(err, db.ErrSlotTaken):
		return conflict(updated.Slot()), nil
	case errors.Is(err, db.ErrBookingChanged):
		logger.Info("update lost to a concurrent change", "err", err)
		return changedConcurrently(), nil
	case errors.Is(err, db.ErrBookingNotFound):
		return notFound(id), nil
	case err != nil:
		logger.Error("failed to persist booking update", "err", err)
		return Result{}, &ServiceUnavailableError{Op: "update booking", Err: err}
	}

	logger.Info("booking updated", "rescheduled", rescheduled, "status", updated.Status)

	b := &updated
	o.updateCalendarEvent(ctx, logger, b)

	interaction := models.InteractionStatus
	if rescheduled {
		interaction = models.InteractionRescheduled
	}
	if rescheduled || statusChanged {
		o.syncCRM(ctx, logger, b, interaction)
	}

	if rescheduled {
		o.notify(ctx, logger, b, models.TemplateRescheduled, &previousStart)
	}
	o.persistSync(ctx, logger, b)

	return Result{Outcome: OutcomeUpdated, Booking: b}, nil
}

// CancelBooking frees the booking's slot. Cancelling an already cancelled
// booking returns it unchanged.
func (o *Orchestrator) CancelBooking(ctx context.Context, id uuid.UUID) (Result, error) {
	logger := o.opLogger("cancel").With("booking_id", id)

	res, err := o.cancel(ctx, logger, id)
	if errors.Is(err, db.ErrBookingChanged) {
		// Decide again on the fresh record; a concurrent cancel makes this a no-op.
		logger.Info("booking changed before cancel was written, reloading", "err", err)
		res, err = o.cancel(ctx, logger, id)
	}
	if errors.Is(err, db.ErrBookingChanged) {
		return changedConcurrently(), nil
	}
	return res, err
}

func (o *Orchestrator) cancel(ctx context.Context, logger *log.Logger, id uuid.UUID) (Result, error) {
	existing, err := o.load(ctx, id)
	if errors.Is(err, db.ErrBookingNotFound) {
		return notFound(id), nil
	}
	if err != nil {
		return Result{}, &ServiceUnavailableError{Op: "load booking", Err: err}
	}

	if existing.Status == models.StatusCancelled {
		return Result{Outcome: OutcomeCancelled, Booking: existing}, nil
	}
	if !existing.Status.CanTransitionTo(models.StatusCancelled) {
		return invalid("status", fmt.Sprintf("a %s booking cannot be cancelled", existing.Status)), nil
	}

	b := *existing
	b.Status = models.StatusCancelled
	b.UpdatedAt = o.timestamp()

	err = resilience.Run(ctx, o.retrier, "store.update", o.storePolicy(), func(ctx context.Context) error {
		return o.store.UpdateByID(ctx, &b, existing.Status)
	})
	if errors.Is(err, db.ErrBookingNotFound) {
		return notFound(id), nil
	}
	if errors.Is(err, db.ErrBookingChanged) {
		return Result{}, err
	}
	if err != nil {
		logger.Error("failed to persist cancellation", "err", err)
		return Result{}, &ServiceUnavailableError{Op: "cancel booking", Err: err}
	}

	logger.Info("booking cancelled")

	o.removeCalendarEvent(ctx, logger, &b)
	o.syncCRM(ctx, logger, &b, models.InteractionCancelled)
	o.notify(ctx, logger, &b, models.TemplateCancelled, nil)
	o.persistSync(ctx, logger, &b)

	return Result{Outcome: OutcomeCancelled, Booking: &b}, nil
}

// validateSlot checks business hours and the advance-booking window.
func (o *Orchestrator) validateSlot(slot models.TimeSlot) (Result, bool) {
	if slot.Start.IsZero() {
		return invalid("start_time", "is required"), false
	}
	if !o.cfg.Hours.Contains(slot) {
		return invalid("start_time", "must fall entirely within business hours"), false
	}

	now := o.now()
	if earliest := now.Add(time.Duration(o.cfg.Hours.MinAdvanceHours) * time.Hour); slot.Start.Before(earliest) {
		return invalid("start_time", fmt.Sprintf("must be at least %d hours in advance", o.cfg.Hours.MinAdvanceHours)), false
	}
	if o.cfg.Hours.MaxAdvanceHours > 0 {
		if latest := now.Add(time.Duration(o.cfg.Hours.MaxAdvanceHours) * time.Hour); slot.Start.After(latest) {
			return invalid("start_time", fmt.Sprintf("must be at most %d hours in advance", o.cfg.Hours.MaxAdvanceHours)), false
		}
	}
	return Result{}, true
}
