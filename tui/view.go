// ABOUTME: Rendering for the bookings dashboard
// ABOUTME: Tab bar, bookings table, and footer help
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/consult/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	confirmStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)
)

var tabNames = []string{"Upcoming", "Needs Sync"}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("CONSULT BOOKINGS"))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	if len(m.bookings) == 0 && m.err == nil {
		s.WriteString(m.emptyMessage())
	} else {
		s.WriteString(m.table.View())
	}
	s.WriteString("\n")

	switch {
	case m.confirmCancel:
		if b := m.selected(); b != nil {
			s.WriteString(confirmStyle.Render(fmt.Sprintf("Cancel %s's booking on %s? (y/n)",
				b.Name, b.StartTime.In(m.location).Format("Jan 2 15:04"))))
		}
	case m.err != nil:
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	case m.status != "":
		s.WriteString(statusStyle.Render(m.status))
	}
	s.WriteString("\n")

	s.WriteString(helpStyle.Render("tab: switch • ↑/↓: move • c: cancel • s: reconcile • r: refresh • q: quit"))
	return s.String()
}

func (m Model) renderTabs() string {
	var rendered []string
	for i, name := range tabNames {
		if Tab(i) == m.tab {
			rendered = append(rendered, tabActiveStyle.Render(name))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) emptyMessage() string {
	if m.tab == TabNeedsSync {
		return "Everything is in sync."
	}
	return fmt.Sprintf("No bookings in the next %d days.", upcomingDays)
}

func columns(tab Tab) []table.Column {
	if tab == TabNeedsSync {
		return []table.Column{
			{Title: "When", Width: 17},
			{Title: "Client", Width: 22},
			{Title: "Status", Width: 10},
			{Title: "Calendar", Width: 9},
			{Title: "CRM", Width: 9},
		}
	}
	return []table.Column{
		{Title: "When", Width: 17},
		{Title: "Min", Width: 4},
		{Title: "Client", Width: 22},
		{Title: "Email", Width: 26},
		{Title: "Status", Width: 10},
		{Title: "Sync", Width: 7},
	}
}

func rows(tab Tab, bookings []*models.Booking, loc *time.Location) []table.Row {
	out := make([]table.Row, 0, len(bookings))
	for _, b := range bookings {
		when := b.StartTime.In(loc).Format("Mon Jan 02 15:04")
		if tab == TabNeedsSync {
			out = append(out, table.Row{when, b.Name, string(b.Status), mark(b.CalendarSynced), mark(b.CRMSynced)})
			continue
		}
		syncState := "ok"
		if b.NeedsSync() {
			syncState = "pending"
		}
		out = append(out, table.Row{when, fmt.Sprint(int(b.Duration)), b.Name, b.Email, string(b.Status), syncState})
	}
	return out
}

func mark(synced bool) string {
	if synced {
		return "✓"
	}
	return "✗"
}
