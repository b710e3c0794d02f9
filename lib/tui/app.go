// Package tui provides a live terminal view of a running dbpool. It uses
// BubbleTea for the application framework and polls the status server's
// /stats endpoint.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-i2p/logger"

	"github.com/go-i2p/dbpool/lib/pool"
)

var log = logger.GetGoI2PLogger()

// DefaultRefreshInterval is the polling interval when Config leaves it unset.
const DefaultRefreshInterval = 2 * time.Second

// Tab represents a UI tab.
type Tab int

const (
	TabOverview Tab = iota
	TabHistory
	tabCount
)

func (t Tab) String() string {
	switch t {
	case TabOverview:
		return "Overview"
	case TabHistory:
		return "History"
	default:
		return "Unknown"
	}
}

// Config holds TUI configuration.
type Config struct {
	// StatusAddr is the status server address, host:port or URL.
	StatusAddr string
	// RefreshInterval is how often to poll.
	RefreshInterval time.Duration
	// HistorySize is the number of samples kept. Zero means DefaultHistorySize.
	HistorySize int
}

// Model is the main TUI application model.
type Model struct {
	client   *StatsClient
	interval time.Duration

	activeTab   Tab
	width       int
	height      int
	ready       bool
	paused      bool
	err         error
	lastRefresh time.Time
	stats       *pool.Stats

	spinner  spinner.Model
	overview OverviewModel
	history  HistoryModel
}

// New creates a new TUI model.
func New(cfg Config) (*Model, error) {
	client, err := NewStatsClient(cfg.StatusAddr)
	if err != nil {
		return nil, err
	}
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &Model{
		client:    client,
		interval:  interval,
		activeTab: TabOverview,
		spinner:   s,
		overview:  NewOverviewModel(),
		history:   NewHistoryModel(cfg.HistorySize),
	}, nil
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.refreshData,
		tea.SetWindowTitle("dbpool"),
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Tab):
			m.activeTab = (m.activeTab + 1) % tabCount
		case key.Matches(msg, keys.ShiftTab):
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
		case key.Matches(msg, keys.Refresh):
			cmds = append(cmds, m.refreshData)
		case key.Matches(msg, keys.Pause):
			m.paused = !m.paused
			if !m.paused {
				cmds = append(cmds, m.refreshData)
			}
		case key.Matches(msg, keys.Overview):
			m.activeTab = TabOverview
		case key.Matches(msg, keys.History):
			m.activeTab = TabHistory
		}

		if m.activeTab == TabHistory {
			var cmd tea.Cmd
			m.history, cmd = m.history.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		contentHeight := m.height - 4
		m.overview.SetDimensions(m.width, contentHeight)
		m.history.SetDimensions(m.width, contentHeight)

	case refreshMsg:
		m.err = msg.err
		m.lastRefresh = msg.at
		if msg.err == nil {
			m.stats = msg.stats
			m.overview.SetData(msg.stats)
			m.history.Add(msg.at, *msg.stats)
		}
		if !m.paused {
			cmds = append(cmds, tea.Tick(m.interval, func(t time.Time) tea.Msg {
				return tickMsg(t)
			}))
		}

	case tickMsg:
		if !m.paused {
			cmds = append(cmds, m.refreshData)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return fmt.Sprintf("%s Connecting to %s...", m.spinner.View(), m.client.BaseURL())
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.activeTab {
	case TabOverview:
		b.WriteString(m.overview.View())
	case TabHistory:
		b.WriteString(m.history.View())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader renders the tab bar.
func (m Model) renderHeader() string {
	var rendered []string
	for tab := Tab(0); tab < tabCount; tab++ {
		style := styles.TabInactive
		if tab == m.activeTab {
			style = styles.TabActive
		}
		rendered = append(rendered, style.Render(tab.String()))
	}

	title := styles.Title.Render("dbpool")
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
}

// renderFooter renders the help text and the refresh status.
func (m Model) renderFooter() string {
	var helpItems []string
	if m.activeTab == TabHistory {
		helpItems = append(helpItems, "↑↓ scroll")
	}
	helpItems = append(helpItems, "tab switch", "r refresh", "p pause", "q quit")
	help := strings.Join(helpItems, " • ")

	var statusInfo string
	switch {
	case m.err != nil:
		statusInfo = styles.Error.Render(m.err.Error())
	case m.paused:
		statusInfo = styles.Warning.Render("paused")
	case !m.lastRefresh.IsZero():
		statusInfo = "updated " + m.lastRefresh.Format("15:04:05")
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		styles.HelpText.Render(help),
		strings.Repeat(" ", max(0, m.width-lipgloss.Width(help)-lipgloss.Width(statusInfo)-2)),
		styles.StatusText.Render(statusInfo),
	)
}

// refreshData fetches fresh statistics.
func (m Model) refreshData() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultRequestTimeout)
	defer cancel()

	stats, err := m.client.Stats(ctx)
	if err != nil {
		log.WithError(err).Debug("stats refresh failed")
	}
	return refreshMsg{stats: stats, err: err, at: time.Now()}
}

// Close cleans up resources.
func (m *Model) Close() error {
	return m.client.Close()
}

type refreshMsg struct {
	stats *pool.Stats
	err   error
	at    time.Time
}

type tickMsg time.Time
