package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-i2p/dbpool/lib/pool"
)

// DefaultRequestTimeout bounds one status request.
const DefaultRequestTimeout = 5 * time.Second

// StatsClient reads pool statistics from a dbpool status server.
type StatsClient struct {
	baseURL string
	http    *http.Client
}

// NewStatsClient creates a client for the status server at addr, given
// either as host:port or as an http(s) URL.
func NewStatsClient(addr string) (*StatsClient, error) {
	addr = strings.TrimRight(strings.TrimSpace(addr), "/")
	if addr == "" {
		return nil, fmt.Errorf("status server address is required")
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &StatsClient{
		baseURL: addr,
		http:    &http.Client{Timeout: DefaultRequestTimeout},
	}, nil
}

// BaseURL returns the status server URL.
func (c *StatsClient) BaseURL() string {
	return c.baseURL
}

// Stats fetches the current pool statistics.
func (c *StatsClient) Stats(ctx context.Context) (*pool.Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("fetching stats: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var stats pool.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decoding stats: %w", err)
	}
	return &stats, nil
}

// Close releases idle HTTP connections.
func (c *StatsClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
