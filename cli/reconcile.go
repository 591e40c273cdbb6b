// ABOUTME: Reconcile command that retries deferred calendar and CRM syncs
// ABOUTME: Runs once or as a daemon on a ticker until SIGINT/SIGTERM
package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/consult/booking"
	"github.com/harperreed/consult/db"
)

const (
	reconcileService     = "reconcile"
	minReconcileInterval = time.Minute
)

type reconciler interface {
	Reconcile(ctx context.Context, limit int) (booking.ReconcileReport, error)
}

// ReconcileCommand runs reconcile passes.
func ReconcileCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	interval := fs.Duration("interval", app.Config.Reconcile.Interval, "Time between passes in daemon mode (minimum 1m)")
	once := fs.Bool("once", false, "Run a single pass and exit")
	batch := fs.Int("batch", app.Config.Reconcile.Batch, "Bookings handled per pass")
	_ = fs.Parse(args)

	if err := validateInterval(*interval); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		report, err := runReconcilePass(ctx, app.Orchestrator, app.DB, *batch, app.Logger)
		if err != nil {
			return err
		}
		fmt.Println(ok(fmt.Sprintf("Reconciled %d bookings, %d still pending", report.Synced, report.Deferred)))
		return nil
	}

	fmt.Printf("Reconciling every %s (Ctrl+C to stop)\n", *interval)
	return runReconcileLoop(ctx, app.Orchestrator, app.DB, *interval, *batch, app.Logger)
}

func validateInterval(d time.Duration) error {
	if d < minReconcileInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minReconcileInterval, d)
	}
	return nil
}

// runReconcileLoop runs one pass immediately and then one per tick until ctx ends.
func runReconcileLoop(ctx context.Context, r reconciler, database *sql.DB, interval time.Duration, batch int, logger *log.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := runReconcilePass(ctx, r, database, batch, logger); err != nil {
			logger.Error("reconcile pass failed", "err", err)
		}

		select {
		case <-ctx.Done():
			logger.Info("reconcile stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// runReconcilePass runs one pass and records its outcome in sync_state.
func runReconcilePass(ctx context.Context, r reconciler, database *sql.DB, batch int, logger *log.Logger) (booking.ReconcileReport, error) {
	if err := db.MarkRunStarted(ctx, database, reconcileService); err != nil {
		logger.Warn("failed to record reconcile status", "err", err)
	}

	report, err := r.Reconcile(ctx, batch)
	if err != nil {
		if serr := db.MarkRunFailed(context.WithoutCancel(ctx), database, reconcileService, err); serr != nil {
			logger.Warn("failed to record reconcile status", "err", serr)
		}
		return report, err
	}

	if err := db.MarkRunComplete(context.WithoutCancel(ctx), database, reconcileService, report.String()); err != nil {
		logger.Warn("failed to record reconcile status", "err", err)
	}
	return report, nil
}

// StatusCommand shows the last reconcile run and how many bookings are pending.
func StatusCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	_ = fs.Parse(args)

	ctx := context.Background()
	states, err := db.ListRunStates(ctx, app.DB)
	if err != nil {
		return err
	}

	pending, err := app.Orchestrator.NeedingSync(ctx, 1000)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SERVICE\tSTATUS\tLAST RUN\tSUMMARY")
	for _, s := range states {
		last := "never"
		if s.LastRunAt != nil {
			last = formatTimeSince(*s.LastRunAt)
		}
		summary := s.LastSummary
		if s.ErrorMessage != "" {
			summary = s.ErrorMessage
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Service, s.Status, last, summary)
	}
	_ = tw.Flush()

	if len(pending) == 0 {
		fmt.Println(ok("All bookings are in sync"))
	} else {
		fmt.Println(warn(fmt.Sprintf("%d bookings need sync", len(pending))))
	}
	return nil
}

func formatTimeSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour") + " ago"
	default:
		return plural(int(d.Hours()/24), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
