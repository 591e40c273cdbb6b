// ABOUTME: Terminal dashboard for upcoming bookings using bubbletea
// ABOUTME: Two tabs: upcoming bookings and bookings waiting on calendar or CRM sync
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/harperreed/consult/booking"
	"github.com/harperreed/consult/models"
	"golang.org/x/term"
)

// Source is what the dashboard reads and acts on.
type Source interface {
	ListBookings(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	NeedingSync(ctx context.Context, limit int) ([]*models.Booking, error)
	CancelBooking(ctx context.Context, id uuid.UUID) (booking.Result, error)
	Reconcile(ctx context.Context, limit int) (booking.ReconcileReport, error)
}

// Tab selects which bookings the table shows.
type Tab int

const (
	TabUpcoming Tab = iota
	TabNeedsSync
)

const (
	upcomingDays = 30
	syncLimit    = 100
)

type bookingsLoadedMsg struct {
	tab      Tab
	bookings []*models.Booking
	err      error
}

type cancelDoneMsg struct {
	result booking.Result
	err    error
}

type reconcileDoneMsg struct {
	report booking.ReconcileReport
	err    error
}

// Model is the main bubbletea model.
type Model struct {
	src      Source
	location *time.Location
	now      func() time.Time

	tab      Tab
	bookings []*models.Booking
	table    table.Model

	confirmCancel bool
	busy          bool
	status        string
	err           error

	width  int
	height int
}

// NewModel creates a dashboard over src showing times in loc.
func NewModel(src Source, loc *time.Location) Model {
	if loc == nil {
		loc = time.UTC
	}
	t := table.New(
		table.WithColumns(columns(TabUpcoming)),
		table.WithFocused(true),
		table.WithHeight(14),
	)
	return Model{
		src:      src,
		location: loc,
		now:      time.Now,
		tab:      TabUpcoming,
		table:    t,
		width:    80,
		height:   24,
	}
}

// Run starts the dashboard full screen. It refuses to start without a terminal.
func Run(src Source, loc *time.Location) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("tui requires an interactive terminal")
	}
	_, err := tea.NewProgram(NewModel(src, loc), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 10; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case bookingsLoadedMsg:
		if msg.tab != m.tab {
			return m, nil
		}
		m.err = msg.err
		if msg.err == nil {
			m.bookings = msg.bookings
			m.table.SetRows(rows(m.tab, msg.bookings, m.location))
			if m.table.Cursor() >= len(msg.bookings) {
				m.table.SetCursor(0)
			}
		}
		return m, nil

	case cancelDoneMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.err = msg.err
		case !msg.result.OK():
			m.err = msg.result.Err()
		default:
			m.status = fmt.Sprintf("Cancelled booking for %s", msg.result.Booking.Name)
		}
		return m, m.load()

	case reconcileDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.status = fmt.Sprintf("Reconciled: %d synced, %d still pending", msg.report.Synced, msg.report.Deferred)
		}
		return m, m.load()

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmCancel {
		switch msg.String() {
		case "y", "Y":
			m.confirmCancel = false
			b := m.selected()
			if b == nil {
				return m, nil
			}
			m.busy = true
			return m, m.cancel(b.ID)
		default:
			m.confirmCancel = false
			m.status = "Cancel aborted"
			return m, nil
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab", "right", "left", "shift+tab":
		m.tab = (m.tab + 1) % 2
		m.table.SetRows(nil)
		m.table.SetColumns(columns(m.tab))
		m.table.SetCursor(0)
		m.bookings = nil
		m.status, m.err = "", nil
		return m, m.load()
	case "r":
		m.status, m.err = "", nil
		return m, m.load()
	case "c":
		b := m.selected()
		if b == nil || m.busy {
			return m, nil
		}
		if b.Status.Terminal() {
			m.status = fmt.Sprintf("A %s booking cannot be cancelled", b.Status)
			return m, nil
		}
		m.confirmCancel = true
		return m, nil
	case "s":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.status = "Reconciling..."
		return m, m.reconcile()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) selected() *models.Booking {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.bookings) {
		return nil
	}
	return m.bookings[i]
}

func (m Model) load() tea.Cmd {
	tab, src, now := m.tab, m.src, m.now()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var (
			bookings []*models.Booking
			err      error
		)
		if tab == TabNeedsSync {
			bookings, err = src.NeedingSync(ctx, syncLimit)
		} else {
			bookings, err = src.ListBookings(ctx, now, now.AddDate(0, 0, upcomingDays))
			bookings = upcoming(bookings)
		}
		return bookingsLoadedMsg{tab: tab, bookings: bookings, err: err}
	}
}

func (m Model) cancel(id uuid.UUID) tea.Cmd {
	src := m.src
	return func() tea.Msg {
		res, err := src.CancelBooking(context.Background(), id)
		return cancelDoneMsg{result: res, err: err}
	}
}

func (m Model) reconcile() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		report, err := src.Reconcile(context.Background(), syncLimit)
		return reconcileDoneMsg{report: report, err: err}
	}
}

func upcoming(bookings []*models.Booking) []*models.Booking {
	var out []*models.Booking
	for _, b := range bookings {
		if b.Active() {
			out = append(out, b)
		}
	}
	return out
}
