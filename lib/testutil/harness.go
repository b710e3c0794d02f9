// Package testutil provides helpers for dbpool tests: an in-memory mock
// driver and gates for integration tests against real databases.
package testutil

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"
)

// DefaultDialTimeout bounds the reachability check of a test database.
const DefaultDialTimeout = 5 * time.Second

// Database is a real database reachable from the test environment.
type Database struct {
	// Driver is the registry identifier ("postgres", "mysql").
	Driver string
	// URL is the connection string from the environment.
	URL string
}

// EnvVar returns the environment variable naming the test database for a
// driver, e.g. DBPOOL_TEST_POSTGRES_URL.
func EnvVar(driver string) string {
	return "DBPOOL_TEST_" + strings.ToUpper(driver) + "_URL"
}

// LookupDatabase returns the database configured for driver, or an error
// explaining why integration tests for it cannot run.
func LookupDatabase(driver string) (Database, error) {
	env := EnvVar(driver)
	raw := os.Getenv(env)
	if raw == "" {
		return Database{}, fmt.Errorf("%s is not set", env)
	}

	db := Database{Driver: driver, URL: raw}
	if addr := hostPort(raw); addr != "" {
		conn, err := net.DialTimeout("tcp", addr, DefaultDialTimeout)
		if err != nil {
			return Database{}, fmt.Errorf("%s database unavailable at %s: %w", driver, addr, err)
		}
		conn.Close()
	}
	return db, nil
}

// RequireDatabase skips t unless a reachable database for driver is
// configured through EnvVar(driver).
func RequireDatabase(t testing.TB, driver string) Database {
	t.Helper()
	db, err := LookupDatabase(driver)
	if err != nil {
		t.Skipf("skipping %s integration test: %v", driver, err)
	}
	return db
}

// hostPort extracts host:port from a URL-style connection string. It
// returns "" for strings it cannot read, leaving the check to the driver.
func hostPort(raw string) string {
	raw = strings.TrimPrefix(raw, "jdbc:")
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Port() != "" {
		return u.Host
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return net.JoinHostPort(u.Hostname(), "5432")
	case "mysql", "mariadb":
		return net.JoinHostPort(u.Hostname(), "3306")
	}
	return ""
}
