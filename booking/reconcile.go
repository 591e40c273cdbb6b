// ABOUTME: Retries deferred calendar and CRM syncs for bookings with pending flags
// ABOUTME: Each booking is handled independently through the same breakers as live requests
package booking

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harperreed/consult/models"
)

// ReconcileReport summarises one reconcile pass.
type ReconcileReport struct {
	Checked  int `json:"checked"`
	Synced   int `json:"synced"`
	Deferred int `json:"deferred"`
}

func (r ReconcileReport) String() string {
	return fmt.Sprintf("checked=%d synced=%d deferred=%d", r.Checked, r.Synced, r.Deferred)
}

// Reconcile processes up to limit bookings that an external system is behind on.
func (o *Orchestrator) Reconcile(ctx context.Context, limit int) (ReconcileReport, error) {
	logger := o.opLogger("reconcile")
	var report ReconcileReport

	bookings, err := o.NeedingSync(ctx, limit)
	if err != nil {
		return report, err
	}

	for _, b := range bookings {
		if ctx.Err() != nil {
			break
		}

		bl := logger.With("booking_id", b.ID, "status", b.Status)
		before := b.SyncState()

		o.reconcileOne(ctx, bl, b)

		if b.SyncState() != before {
			o.persistSync(ctx, bl, b)
		}

		report.Checked++
		if b.NeedsSync() {
			report.Deferred++
			bl.Info("booking still needs sync", "calendar_synced", b.CalendarSynced, "crm_synced", b.CRMSynced)
		} else {
			report.Synced++
			bl.Info("booking reconciled")
		}
	}

	logger.Info("reconcile pass finished", "checked", report.Checked, "synced", report.Synced, "deferred", report.Deferred)
	return report, nil
}

func (o *Orchestrator) reconcileOne(ctx context.Context, logger *log.Logger, b *models.Booking) {
	if b.Active() {
		if !b.CalendarSynced {
			o.updateCalendarEvent(ctx, logger, b)
		}
		if !b.CRMSynced {
			o.syncCRM(ctx, logger, b, models.InteractionBooked)
		}
		return
	}

	if b.RequiresManualCalendarSync {
		o.removeCalendarEvent(ctx, logger, b)
	}
	if b.RequiresManualCRMSync {
		o.syncCRM(ctx, logger, b, models.InteractionCancelled)
	}
}
