package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/go-i2p/dbpool/lib/driver"
)

// ErrMockBroken is returned by a MockConn after Break.
var ErrMockBroken = errors.New("mock: connection reset by peer")

// MockDriver is an in-memory driver.Driver. Register it with
// RegisterMockDriver to open pools against it by name.
type MockDriver struct {
	name string

	mu      sync.Mutex
	openErr error
	params  []driver.Params
	conns   []*MockConn
}

// NewMockDriver creates an unregistered mock driver.
func NewMockDriver(name string) *MockDriver {
	return &MockDriver{name: name}
}

// RegisterMockDriver creates a mock driver and adds it to the driver
// registry. Names must be unique per test binary.
func RegisterMockDriver(name string, aliases ...string) *MockDriver {
	d := NewMockDriver(name)
	driver.Register(d, aliases...)
	return d
}

// Name implements driver.Driver.
func (d *MockDriver) Name() string { return d.name }

// Open implements driver.Driver.
func (d *MockDriver) Open(ctx context.Context, p driver.Params) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = append(d.params, p)
	if d.openErr != nil {
		return nil, d.openErr
	}
	c := &MockConn{}
	d.conns = append(d.conns, c)
	return c, nil
}

// SetOpenError makes every following Open fail with err; nil restores
// normal behavior.
func (d *MockDriver) SetOpenError(err error) {
	d.mu.Lock()
	d.openErr = err
	d.mu.Unlock()
}

// Conns returns the connections opened so far.
func (d *MockDriver) Conns() []*MockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MockConn(nil), d.conns...)
}

// Opened returns the parameters of every Open call.
func (d *MockDriver) Opened() []driver.Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.Params(nil), d.params...)
}

// OpenConns counts connections not yet closed.
func (d *MockDriver) OpenConns() int {
	n := 0
	for _, c := range d.Conns() {
		if !c.IsClosed() {
			n++
		}
	}
	return n
}

// MockConn is an in-memory driver.Conn.
type MockConn struct {
	broken atomic.Bool
	closed atomic.Bool
	execs  atomic.Int64
}

// Break makes Ping and Exec fail from now on.
func (c *MockConn) Break() { c.broken.Store(true) }

// Execs counts Exec calls.
func (c *MockConn) Execs() int64 { return c.execs.Load() }

// Ping implements driver.Conn.
func (c *MockConn) Ping(ctx context.Context) error {
	if c.broken.Load() || c.closed.Load() {
		return ErrMockBroken
	}
	return ctx.Err()
}

// Exec implements driver.Conn.
func (c *MockConn) Exec(ctx context.Context, _ string) error {
	c.execs.Add(1)
	return c.Ping(ctx)
}

// IsClosed implements driver.Conn.
func (c *MockConn) IsClosed() bool { return c.closed.Load() }

// Close implements driver.Conn.
func (c *MockConn) Close() error {
	c.closed.Store(true)
	return nil
}

// Raw implements driver.Conn.
func (c *MockConn) Raw() any { return c }
