// ABOUTME: Terminal styles for command output
package cli

import "github.com/charmbracelet/lipgloss"

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

func ok(s string) string   { return okStyle.Render("✓ " + s) }
func warn(s string) string { return warnStyle.Render("! " + s) }
func fail(s string) string { return errStyle.Render("✗ " + s) }
