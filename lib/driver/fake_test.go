package driver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

var errFakeDenied = errors.New("fake: access denied")

// fakeDriver is a scriptable in-memory driver.
type fakeDriver struct {
	name    string
	openErr error
	nilConn bool
	check   func(Params) error

	mu     sync.Mutex
	opened []Params
}

func (d *fakeDriver) Name() string { return d.name }

func (d *fakeDriver) Open(ctx context.Context, p Params) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.opened = append(d.opened, p)
	d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	if d.nilConn {
		return nil, nil
	}
	return &fakeConn{}, nil
}

func (d *fakeDriver) CheckParams(p Params) error {
	if d.check != nil {
		return d.check(p)
	}
	return nil
}

func (d *fakeDriver) IsAuthError(err error) bool {
	return errors.Is(err, errFakeDenied)
}

func (d *fakeDriver) opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opened)
}

type fakeConn struct {
	closed atomic.Bool
}

func (c *fakeConn) Ping(context.Context) error         { return nil }
func (c *fakeConn) Exec(context.Context, string) error { return nil }
func (c *fakeConn) IsClosed() bool                     { return c.closed.Load() }
func (c *fakeConn) Close() error                       { c.closed.Store(true); return nil }
func (c *fakeConn) Raw() any                           { return c }

// registerTest registers d for the duration of t, so repeated runs of the
// same test binary can register the same names again.
func registerTest(t *testing.T, d Driver, aliases ...string) {
	t.Helper()
	Register(d, aliases...)
	t.Cleanup(func() {
		registry.mu.Lock()
		defer registry.mu.Unlock()
		for _, id := range append([]string{d.Name()}, aliases...) {
			delete(registry.drivers, id)
		}
	})
}
