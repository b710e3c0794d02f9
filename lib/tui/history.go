package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-i2p/dbpool/lib/pool"
)

// DefaultHistorySize is the number of samples kept by the history tab.
const DefaultHistorySize = 300

type sample struct {
	at    time.Time
	stats pool.Stats
}

// HistoryModel lists recent samples with per-interval deltas.
type HistoryModel struct {
	samples  []sample
	limit    int
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	follow   bool
}

// NewHistoryModel creates a history model keeping up to limit samples.
func NewHistoryModel(limit int) HistoryModel {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return HistoryModel{limit: limit, follow: true}
}

// Add appends a sample, dropping the oldest beyond the limit.
func (m *HistoryModel) Add(at time.Time, stats pool.Stats) {
	m.samples = append(m.samples, sample{at: at, stats: stats})
	if len(m.samples) > m.limit {
		m.samples = m.samples[len(m.samples)-m.limit:]
	}
	if m.ready {
		m.updateViewport()
	}
}

// Len returns the number of samples kept.
func (m HistoryModel) Len() int {
	return len(m.samples)
}

// SetDimensions sets the view dimensions.
func (m *HistoryModel) SetDimensions(width, height int) {
	m.width = width
	m.height = height
	if !m.ready {
		m.viewport = viewport.New(width, max(1, height-4))
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = max(1, height-4)
	}
	m.updateViewport()
}

// Update handles scrolling keys.
func (m HistoryModel) Update(msg tea.Msg) (HistoryModel, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "f":
			m.follow = !m.follow
			if m.follow {
				m.viewport.GotoBottom()
			}
			return m, nil
		case "g":
			m.viewport.GotoTop()
			m.follow = false
			return m, nil
		case "G":
			m.viewport.GotoBottom()
			m.follow = true
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.follow = m.viewport.AtBottom()
	return m, cmd
}

// View renders the history tab.
func (m HistoryModel) View() string {
	if !m.ready {
		return styles.Muted.Render("Initializing...")
	}
	if len(m.samples) == 0 {
		return styles.Muted.Render("No samples yet")
	}

	followStatus := "OFF"
	if m.follow {
		followStatus = "ON"
	}
	header := styles.Muted.Render(fmt.Sprintf(
		"History ─ %d samples │ Follow: %s │ (g)top (G)bottom (f)toggle follow",
		len(m.samples), followStatus,
	))
	footer := styles.Muted.Render(fmt.Sprintf("─── %.0f%% ───", m.viewport.ScrollPercent()*100))

	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), footer)
}

func (m *HistoryModel) updateViewport() {
	var b strings.Builder
	for i, s := range m.samples {
		var prev *pool.Stats
		if i > 0 {
			prev = &m.samples[i-1].stats
		}
		b.WriteString(formatSample(s, prev))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// formatSample renders one sample; counters are shown as the change since
// prev when it is known.
func formatSample(s sample, prev *pool.Stats) string {
	st := s.stats
	var created, closed, timedOut uint64
	if prev != nil {
		created = delta(st.TotalCreated, prev.TotalCreated)
		closed = delta(st.TotalClosed, prev.TotalClosed)
		timedOut = delta(st.TotalTimedOut, prev.TotalTimedOut)
	}

	line := fmt.Sprintf("in use %3d  idle %3d  waiting %3d  +created %d  +closed %d",
		st.Active, st.Idle, st.Waiting, created, closed)
	if timedOut > 0 {
		line += styles.Error.Render(fmt.Sprintf("  +timeouts %d", timedOut))
	}
	return styles.Muted.Render(s.at.Format("15:04:05")) + "  " + line
}

// delta tolerates counters that went backwards after a pool restart.
func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}
