package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/go-i2p/dbpool/lib/pool"
)

var styles = struct {
	Title       lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	HelpText    lipgloss.Style
	StatusText  lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Muted       lipgloss.Style
	Bold        lipgloss.Style
	Box         lipgloss.Style
	BoxTitle    lipgloss.Style
	BarActive   lipgloss.Style
	BarIdle     lipgloss.Style
	BarFree     lipgloss.Style
}{
	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Padding(0, 1),

	TabActive: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Background(lipgloss.Color("236")).
		Padding(0, 2),

	TabInactive: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Padding(0, 2),

	HelpText: lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")),

	StatusText: lipgloss.NewStyle().
		Foreground(lipgloss.Color("244")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true),

	Success: lipgloss.NewStyle().
		Foreground(lipgloss.Color("82")).
		Bold(true),

	Warning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Muted: lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")),

	Bold: lipgloss.NewStyle().
		Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(1, 2).
		Width(60),

	BoxTitle: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")),

	BarActive: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	BarIdle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("82")),

	BarFree: lipgloss.NewStyle().
		Foreground(lipgloss.Color("238")),
}

// stateStyle returns the style for a pool state.
func stateStyle(s pool.State) lipgloss.Style {
	switch s {
	case pool.StateOpen:
		return styles.Success
	case pool.StateShuttingDown:
		return styles.Warning
	case pool.StateClosed:
		return styles.Error
	default:
		return styles.Muted
	}
}
