package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-i2p/dbpool/lib/pool"
)

const barWidth = 40

// OverviewModel is the model for the overview tab.
type OverviewModel struct {
	stats  *pool.Stats
	width  int
	height int
}

// NewOverviewModel creates a new overview model.
func NewOverviewModel() OverviewModel {
	return OverviewModel{}
}

// SetData updates the displayed statistics.
func (m *OverviewModel) SetData(stats *pool.Stats) {
	m.stats = stats
}

// SetDimensions sets the view dimensions.
func (m *OverviewModel) SetDimensions(width, height int) {
	m.width = width
	m.height = height
}

// View renders the overview tab.
func (m OverviewModel) View() string {
	if m.stats == nil {
		return renderEmptyState(m.width, m.height, "No data yet", "Waiting for the status server", nil)
	}
	s := m.stats

	waitingStyle := styles.Muted
	if s.Waiting > 0 {
		waitingStyle = styles.Warning
	}

	poolBox := styles.Box.Render(lipgloss.JoinVertical(lipgloss.Left,
		styles.BoxTitle.Render("Pool"),
		"",
		row("Name", s.Name),
		row("State", stateStyle(s.State).Render(s.State.String())),
		row("Size", fmt.Sprintf("%d open / %d max (min idle %d)", s.Total, s.MaxSize, s.MinIdle)),
		row("In use", styles.BarActive.Render(fmt.Sprintf("%d", s.Active))),
		row("Idle", styles.BarIdle.Render(fmt.Sprintf("%d", s.Idle))),
		row("Waiting", waitingStyle.Render(fmt.Sprintf("%d", s.Waiting))),
		"",
		usageBar(s.Active, s.Idle, s.MaxSize, barWidth),
	))

	failStyle := styles.Muted
	if s.AcquireFailed > 0 || s.TotalTimedOut > 0 {
		failStyle = styles.Error
	}

	countersBox := styles.Box.Render(lipgloss.JoinVertical(lipgloss.Left,
		styles.BoxTitle.Render("Counters"),
		"",
		row("Acquires", fmt.Sprintf("%d", s.AcquireCount)),
		row("Failed", failStyle.Render(fmt.Sprintf("%d", s.AcquireFailed))),
		row("Timed out", failStyle.Render(fmt.Sprintf("%d", s.TotalTimedOut))),
		row("Borrowed", fmt.Sprintf("%d", s.TotalBorrowed)),
		row("Created", fmt.Sprintf("%d", s.TotalCreated)),
		row("Closed", fmt.Sprintf("%d", s.TotalClosed)),
		row("Invalid", fmt.Sprintf("%d", s.ValidationFailures)),
	))

	return poolBox + "\n\n" + countersBox
}

// row formats a label and value pair.
func row(label, value string) string {
	return styles.Muted.Width(12).Render(label+":") + " " + value
}

// usageBar draws in-use, idle and free capacity as one bar of width cells.
func usageBar(active, idle, size, width int) string {
	if size <= 0 || width <= 0 {
		return ""
	}
	a := active * width / size
	i := idle * width / size
	if a+i > width {
		i = width - a
	}
	free := width - a - i
	return styles.BarActive.Render(strings.Repeat("█", a)) +
		styles.BarIdle.Render(strings.Repeat("█", i)) +
		styles.BarFree.Render(strings.Repeat("░", free))
}

// renderEmptyState creates a centered placeholder with a title, subtitle
// and optional help lines.
func renderEmptyState(width, height int, title, subtitle string, helpText []string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(2, 4).
		Width(50)

	lines := []string{styles.Bold.Render(title), ""}
	if subtitle != "" {
		lines = append(lines, styles.Muted.Render(subtitle))
	}
	if len(helpText) > 0 {
		lines = append(lines, "")
		for _, help := range helpText {
			lines = append(lines, styles.HelpText.Render(help))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	if width <= 0 || height <= 2 {
		return box.Render(content)
	}
	return lipgloss.Place(width, height-2, lipgloss.Center, lipgloss.Center, box.Render(content))
}
