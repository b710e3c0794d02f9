package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-i2p/dbpool/lib/driver"
	"github.com/go-i2p/dbpool/lib/resilience"
	"github.com/stretchr/testify/require"
)

var errBroken = errors.New("fake: connection reset by peer")

// fakeConn is an in-memory connection whose health tests can flip.
type fakeConn struct {
	id     int
	broken atomic.Bool
	closed atomic.Bool
	closes atomic.Int32
}

func (c *fakeConn) Ping(ctx context.Context) error {
	if c.broken.Load() {
		return errBroken
	}
	return ctx.Err()
}

func (c *fakeConn) Exec(ctx context.Context, _ string) error {
	return c.Ping(ctx)
}

func (c *fakeConn) IsClosed() bool { return c.closed.Load() }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	c.closes.Add(1)
	return nil
}

func (c *fakeConn) Raw() any { return c }

// fakeConnector hands out fakeConns and records every one of them.
type fakeConnector struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
	delay time.Duration

	closed atomic.Bool
}

func (f *fakeConnector) Create(ctx context.Context) (driver.Conn, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeConn{id: len(f.conns) + 1}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeConnector) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeConnector) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeConnector) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeConnector) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

func (f *fakeConnector) allClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		if !c.IsClosed() {
			return false
		}
	}
	return true
}

var fastBackoff = resilience.Backoff{
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
	MaxRetries:   1,
}

// testConfig returns a small pool without background filling.
func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Name = t.Name()
	cfg.MinimumIdle = 0
	cfg.MaximumPoolSize = 2
	cfg.ConnectionTimeout = 2 * time.Second
	return cfg
}

func newTestPool(t *testing.T, cfg Config, f *fakeConnector) *Pool {
	t.Helper()
	p, err := New(cfg, WithFactory(f), WithBackoff(fastBackoff))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

func fakeOf(l *Lease) *fakeConn {
	return l.Conn().(*fakeConn)
}
