// ABOUTME: HTTP API server command
// ABOUTME: Serves the JSON API and optionally runs the reconciler alongside it
package cli

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
)

// ServeCommand runs the JSON API until SIGINT/SIGTERM.
func ServeCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", app.Config.HTTP.Addr, "Listen address")
	reconcile := fs.Bool("reconcile", true, "Run the reconciler in the background")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	if *reconcile {
		go func() {
			defer close(done)
			_ = runReconcileLoop(ctx, app.Orchestrator, app.DB, app.Config.Reconcile.Interval, app.Config.Reconcile.Batch, app.Logger)
		}()
	} else {
		close(done)
	}

	err := app.Server().Run(ctx, *addr)
	stop()
	<-done
	return err
}
