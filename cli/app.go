// ABOUTME: Builds the booking orchestrator and its adapters from configuration
// ABOUTME: Shared by every command that reads or writes bookings
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/consult/booking"
	"github.com/harperreed/consult/config"
	"github.com/harperreed/consult/crm"
	"github.com/harperreed/consult/db"
	"github.com/harperreed/consult/notify"
	"github.com/harperreed/consult/sync"
	"github.com/harperreed/consult/web"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
)

// App holds everything a command needs. Close releases it.
type App struct {
	Config       *config.Config
	Logger       *log.Logger
	DB           *sql.DB
	Store        *db.BookingStore
	CRM          *crm.LocalCRM
	Orchestrator *booking.Orchestrator
	Location     *time.Location

	closers []io.Closer
}

// Open connects the database and wires calendar, CRM, and notifier adapters
// according to cfg.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	bookingCfg, err := cfg.Booking()
	if err != nil {
		return nil, err
	}

	database, err := db.OpenDatabase(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		DB:       database,
		Store:    db.NewBookingStore(database),
		CRM:      crm.NewLocalCRM(database, logger),
		Location: bookingCfg.Hours.Location,
	}

	google, err := app.googleClient(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	cal, err := app.calendarClient(google)
	if err != nil {
		app.Close()
		return nil, err
	}

	notifier, err := app.notifier(google)
	if err != nil {
		app.Close()
		return nil, err
	}

	bookingCfg.CalendarRetry = bookingCfg.CalendarRetry.WithClassifier(sync.IsRetryable)
	bookingCfg.CRMRetry = bookingCfg.CRMRetry.WithClassifier(db.IsTransient)
	bookingCfg.NotifyRetry = bookingCfg.NotifyRetry.WithClassifier(notify.IsRetryable)
	bookingCfg.StoreRetry = bookingCfg.StoreRetry.WithClassifier(db.IsTransient)

	orch, err := booking.New(bookingCfg, booking.Deps{
		Store:    app.Store,
		Calendar: cal,
		CRM:      app.CRM,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Orchestrator = orch
	return app, nil
}

// Close releases adapters in reverse order, then the database.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn("failed to close adapter", "err", err)
		}
	}
	a.closers = nil
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

// Server returns the JSON API over this app's orchestrator.
func (a *App) Server() *web.Server {
	return web.NewServer(a.Orchestrator, a.Location, a.Logger)
}

// googleClients are the authorised Google services, or nil when calendar
// access has not been set up.
type googleClients struct {
	calendar *calendar.Service
	gmail    *gmail.Service
}

func (a *App) googleClient(ctx context.Context) (*googleClients, error) {
	cfg := a.Config
	oauthCfg := sync.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	if err := sync.RequireCredentials(oauthCfg); err != nil {
		a.Logger.Debug("google credentials not set, calendar disabled")
		return nil, nil
	}

	token, err := sync.LoadToken(cfg.TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		a.Logger.Warn("google not authorized, run 'consult calendar init'", "token_path", cfg.TokenPath())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	httpClient, err := sync.HTTPClient(ctx, oauthCfg, token)
	if err != nil {
		return nil, err
	}

	calSvc, err := sync.NewCalendarService(ctx, httpClient)
	if err != nil {
		return nil, err
	}
	gmailSvc, err := sync.NewGmailService(ctx, httpClient)
	if err != nil {
		return nil, err
	}
	return &googleClients{calendar: calSvc, gmail: gmailSvc}, nil
}

func (a *App) calendarClient(google *googleClients) (booking.CalendarClient, error) {
	var client booking.CalendarClient = sync.UnconfiguredCalendar{}
	if google != nil {
		client = sync.NewGoogleCalendar(google.calendar, a.Config.Google.CalendarID, a.Logger)
	}

	if !a.Config.BusyCache.Enabled {
		return client, nil
	}

	cache, err := sync.OpenBusyCache(a.Config.BusyCacheDir(), a.Config.BusyCache.TTL, client, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open busy cache: %w", err)
	}
	a.closers = append(a.closers, cache)
	return cache, nil
}

func (a *App) notifier(google *googleClients) (booking.Notifier, error) {
	switch a.Config.Notify.Kind {
	case config.NotifierGmail:
		if google == nil {
			return nil, errors.New("gmail notifier needs google authorization, run 'consult calendar init'")
		}
		return notify.NewGmailNotifier(google.gmail, a.Config.Notify.GmailSender), nil
	case config.NotifierAMQP:
		n, err := notify.DialAMQP(a.Config.Notify.AMQPURL, a.Config.Notify.AMQPExchange)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, n)
		return n, nil
	default:
		return notify.NewLogNotifier(a.Logger), nil
	}
}
