// ABOUTME: Entry point for the consult booking CLI, API server, and MCP server
// ABOUTME: Loads configuration, wires the orchestrator, and routes to a command
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/harperreed/consult/cli"
	"github.com/harperreed/consult/config"
	"github.com/harperreed/consult/logging"
)

const version = "0.1.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/consult/consult.db)")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("consult version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	if err := run(args[0], args[1:], *dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string, dbPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	logger, err := logging.New(logging.Options{Level: cfg.App.LogLevel, Format: cfg.App.LogFormat})
	if err != nil {
		return err
	}

	if command == "calendar" {
		if len(args) == 0 || args[0] != "init" {
			return fmt.Errorf("usage: consult calendar init")
		}
		return cli.CalendarInitCommand(cfg, args[1:])
	}

	commands := map[string]func(app *cli.App, args []string) error{
		"slots":     cli.SlotsCommand,
		"book":      cli.BookCommand,
		"update":    cli.UpdateCommand,
		"cancel":    cli.CancelCommand,
		"get":       cli.GetCommand,
		"list":      cli.ListCommand,
		"reconcile": cli.ReconcileCommand,
		"status":    cli.StatusCommand,
		"breakers":  cli.BreakersCommand,
		"serve":     cli.ServeCommand,
		"mcp": func(app *cli.App, _ []string) error {
			return cli.MCPCommand(app, version)
		},
		"tui": func(app *cli.App, _ []string) error {
			return cli.TUICommand(app)
		},
	}

	cmd, ok := commands[command]
	if !ok {
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}

	app, err := cli.Open(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return cmd(app, args)
}

func printUsage() {
	fmt.Printf(`consult v%s - Consultation booking

USAGE:
  consult [global flags] <command> [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       Database path (default: ~/.local/share/consult/consult.db)

COMMANDS:
  slots                  List open slots
    --start <date>           Range start, RFC 3339 or YYYY-MM-DD (default: today)
    --end <date>             Range end, inclusive when a plain date (default: start + 7 days)
    --duration <min>         15, 30, 45, or 60 (default: 30)

  book                   Book a consultation
    --name <name>            Client name (required)
    --email <email>          Client email (required)
    --start <time>           Start time (required)
    --duration <min>         Length in minutes (default: 30)
    --phone, --company, --inquiry

  update [flags] <id>    Reschedule or edit a booking
    --start, --duration, --status, --name, --phone, --company, --inquiry

  cancel <id>            Cancel a booking
  get <id>               Show a booking and its CRM history
  list                   List bookings (--start, --end, --all)

  reconcile              Retry deferred calendar and CRM syncs
    --interval <dur>         Time between passes (default: 5m)
    --once                   Run one pass and exit
    --batch <n>              Bookings per pass (default: 50)

  status                 Show reconcile runs and pending syncs
  breakers               Show circuit breaker state (--reset <name>)
  calendar init          Authorize Google Calendar and Gmail
  serve                  Run the JSON API (--addr, --reconcile)
  mcp                    Start the MCP server on stdio
  tui                    Open the bookings dashboard

CONFIGURATION:
  Settings come from CONSULT_* environment variables, optionally from a .env
  file in the working directory. See CONSULT_TIMEZONE, CONSULT_NOTIFIER,
  CONSULT_GOOGLE_CLIENT_ID, CONSULT_GOOGLE_CLIENT_SECRET, CONSULT_HTTP_ADDR.

EXAMPLES:
  consult slots --start 2024-01-15 --duration 60
  consult book --name "Ada Lovelace" --email ada@example.com --start "2024-01-15 10:00" --duration 60
  consult reconcile --once
`, version)
}
