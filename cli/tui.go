// ABOUTME: Starts the interactive bookings dashboard
package cli

import "github.com/harperreed/consult/tui"

// TUICommand runs the dashboard until the user quits.
func TUICommand(app *App) error {
	return tui.Run(app.Orchestrator, app.Location)
}
