// Package driver opens physical database connections for the pool.
//
// Drivers are looked up by identifier in a process-wide registry. Three
// drivers are built in:
//
//   - postgres (aliases pgx, postgresql, org.postgresql.Driver) on jackc/pgx
//   - mysql (aliases mariadb and the MySQL/MariaDB JDBC class names) on go-sql-driver/mysql
//   - sqlite3 (aliases sqlite, org.sqlite.JDBC) on mattn/go-sqlite3
//
// A Factory binds one driver to one set of connection parameters and is
// what the pool calls whenever it needs a new connection.
package driver

import (
	"context"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Params are the connection parameters handed to a driver.
// Username and Password are passed through verbatim and override any
// credentials embedded in URL.
type Params struct {
	URL        string
	Username   string
	Password   string
	Properties map[string]string
	AutoCommit bool
}

// Conn is one physical database connection.
type Conn interface {
	// Ping runs the driver's native liveness probe.
	Ping(ctx context.Context) error
	// Exec runs a statement and discards its result.
	Exec(ctx context.Context, query string) error
	// IsClosed reports whether the connection is known to be unusable.
	IsClosed() bool
	// Close closes the physical connection. It is safe to call more than once.
	Close() error
	// Raw returns the underlying driver handle (*pgx.Conn or *sql.Conn).
	Raw() any
}

// Driver opens connections for one database type.
type Driver interface {
	// Name returns the canonical identifier the driver is registered under.
	Name() string
	// Open dials a new connection. It must honor ctx cancellation.
	Open(ctx context.Context, p Params) (Conn, error)
}

// ParamsChecker is implemented by drivers that can reject parameters before
// any connection is attempted, e.g. a driver that cannot disable auto-commit.
type ParamsChecker interface {
	CheckParams(p Params) error
}

// AuthClassifier is implemented by drivers that can tell a credential
// rejection apart from other connect failures.
type AuthClassifier interface {
	IsAuthError(err error) bool
}

// Connector creates connections. *Factory implements it; tests and
// embedders can substitute their own.
type Connector interface {
	Create(ctx context.Context) (Conn, error)
}
