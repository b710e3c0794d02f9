package tui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-i2p/dbpool/lib/pool"
)

func fakeKeyMsg(key string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func testStats() pool.Stats {
	return pool.Stats{
		Name:          "orders",
		MaxSize:       10,
		MinIdle:       2,
		Total:         5,
		Active:        3,
		Idle:          2,
		TotalCreated:  7,
		TotalClosed:   2,
		TotalBorrowed: 40,
		AcquireCount:  41,
		State:         pool.StateOpen,
	}
}

// statsServer serves testStats on /stats and counts requests.
func statsServer(t *testing.T, status int) (*httptest.Server, *atomic.Int64) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		if status != http.StatusOK {
			http.Error(w, "pool unavailable", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testStats())
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestTabString(t *testing.T) {
	tests := []struct {
		tab      Tab
		expected string
	}{
		{TabOverview, "Overview"},
		{TabHistory, "History"},
		{Tab(99), "Unknown"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, tc.tab.String())
	}
}

func TestNewStatsClient(t *testing.T) {
	tests := []struct {
		addr    string
		want    string
		wantErr bool
	}{
		{"127.0.0.1:9470", "http://127.0.0.1:9470", false},
		{"http://db-admin:9470/", "http://db-admin:9470", false},
		{"https://status.internal", "https://status.internal", false},
		{"  ", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.addr, func(t *testing.T) {
			c, err := NewStatsClient(tc.addr)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.BaseURL())
		})
	}
}

func TestStatsClient(t *testing.T) {
	srv, _ := statsServer(t, http.StatusOK)
	c, err := NewStatsClient(srv.URL)
	require.NoError(t, err)
	defer c.Close()

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testStats(), *stats)
}

func TestStatsClientErrorStatus(t *testing.T) {
	srv, _ := statsServer(t, http.StatusTooManyRequests)
	c, err := NewStatsClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Stats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestModelRefresh(t *testing.T) {
	srv, hits := statsServer(t, http.StatusOK)
	m, err := New(Config{StatusAddr: srv.URL, RefreshInterval: time.Hour})
	require.NoError(t, err)
	defer m.Close()

	var model tea.Model = *m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	msg := m.refreshData()
	require.IsType(t, refreshMsg{}, msg)
	model, cmd := model.Update(msg)
	assert.NotNil(t, cmd, "next refresh is scheduled")
	assert.EqualValues(t, 1, hits.Load())

	got := model.(Model)
	require.NotNil(t, got.stats)
	assert.Equal(t, "orders", got.stats.Name)
	assert.Equal(t, 1, got.history.Len())

	view := got.View()
	assert.Contains(t, view, "orders")
	assert.Contains(t, view, "open")
	assert.Contains(t, view, "5 open / 10 max")
}

func TestModelRefreshError(t *testing.T) {
	srv, _ := statsServer(t, http.StatusServiceUnavailable)
	m, err := New(Config{StatusAddr: srv.URL})
	require.NoError(t, err)

	var model tea.Model = *m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 200, Height: 40})
	model, _ = model.Update(m.refreshData())

	got := model.(Model)
	require.Error(t, got.err)
	assert.Nil(t, got.stats)
	assert.Equal(t, 0, got.history.Len())
	assert.Contains(t, got.View(), "503")
}

func TestModelKeys(t *testing.T) {
	m, err := New(Config{StatusAddr: "127.0.0.1:1"})
	require.NoError(t, err)

	var model tea.Model = *m
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabHistory, model.(Model).activeTab)

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabOverview, model.(Model).activeTab)

	model, _ = model.Update(fakeKeyMsg("2"))
	assert.Equal(t, TabHistory, model.(Model).activeTab)

	model, _ = model.Update(fakeKeyMsg("p"))
	assert.True(t, model.(Model).paused)

	_, cmd := model.Update(tickMsg(time.Now()))
	assert.Nil(t, cmd, "no refresh while paused")

	_, cmd = model.Update(fakeKeyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHistoryModel(t *testing.T) {
	h := NewHistoryModel(3)
	h.SetDimensions(120, 20)

	start := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s := testStats()
		s.TotalCreated = uint64(10 + i*2)
		h.Add(start.Add(time.Duration(i)*time.Second), s)
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, start.Add(2*time.Second), h.samples[0].at)
	assert.True(t, h.follow)

	view := h.View()
	assert.Contains(t, view, "3 samples")
	assert.Contains(t, view, "+created 2")
}

func TestFormatSampleTimeouts(t *testing.T) {
	prev := testStats()
	cur := testStats()
	cur.TotalTimedOut = 4

	line := formatSample(sample{at: time.Now(), stats: cur}, &prev)
	assert.Contains(t, line, "+timeouts 4")

	first := formatSample(sample{at: time.Now(), stats: cur}, nil)
	assert.NotContains(t, first, "timeouts")
}

func TestDelta(t *testing.T) {
	assert.Equal(t, uint64(3), delta(10, 7))
	assert.Equal(t, uint64(2), delta(2, 9), "counter reset after restart")
}

func TestUsageBar(t *testing.T) {
	bar := usageBar(3, 2, 10, 20)
	assert.Equal(t, 10, strings.Count(bar, "█"), "six in use and four idle cells")
	assert.Equal(t, 10, strings.Count(bar, "░"))
	assert.Empty(t, usageBar(1, 1, 0, 20))
}

func TestOverviewEmpty(t *testing.T) {
	o := NewOverviewModel()
	o.SetDimensions(80, 20)
	assert.Contains(t, o.View(), "No data yet")
}
