package driver

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// sqlConn adapts one database/sql connection to Conn. Each slot gets its
// own single-connection *sql.DB so database/sql never pools behind our back.
type sqlConn struct {
	db     *sql.DB
	conn   *sql.Conn
	broken atomic.Bool
	once   sync.Once
	err    error
}

// openSQL opens a dedicated connection through database/sql and runs the
// init statements on it. Any failure closes what was opened.
func openSQL(ctx context.Context, driverName, dsn string, init ...string) (*sqlConn, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &sqlConn{db: db, conn: conn}
	for _, stmt := range init {
		if err := c.Exec(ctx, stmt); err != nil {
			c.Close()
			return nil, fmt.Errorf("%s: init %q: %w", driverName, stmt, err)
		}
	}
	return c, nil
}

func (c *sqlConn) Ping(ctx context.Context) error {
	return c.observe(c.conn.PingContext(ctx))
}

func (c *sqlConn) Exec(ctx context.Context, query string) error {
	_, err := c.conn.ExecContext(ctx, query)
	return c.observe(err)
}

// observe marks the connection broken when the driver says so.
func (c *sqlConn) observe(err error) error {
	if errors.Is(err, sqldriver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		c.broken.Store(true)
	}
	return err
}

func (c *sqlConn) IsClosed() bool {
	return c.broken.Load()
}

func (c *sqlConn) Close() error {
	c.once.Do(func() {
		c.broken.Store(true)
		c.err = errors.Join(c.conn.Close(), c.db.Close())
	})
	return c.err
}

func (c *sqlConn) Raw() any {
	return c.conn
}
