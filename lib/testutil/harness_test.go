package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/go-i2p/dbpool/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "DBPOOL_TEST_POSTGRES_URL", EnvVar("postgres"))
	assert.Equal(t, "DBPOOL_TEST_MYSQL_URL", EnvVar("mysql"))
}

func TestLookupDatabaseUnset(t *testing.T) {
	t.Setenv(EnvVar("postgres"), "")
	_, err := LookupDatabase("postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DBPOOL_TEST_POSTGRES_URL")
}

func TestLookupDatabaseUnreachable(t *testing.T) {
	// port 1 on loopback is never a database
	t.Setenv(EnvVar("postgres"), "postgres://app@127.0.0.1:1/app")
	_, err := LookupDatabase("postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"postgres://app@db.internal:6543/app", "db.internal:6543"},
		{"postgres://app@db.internal/app", "db.internal:5432"},
		{"jdbc:postgresql://db.internal/app", "db.internal:5432"},
		{"jdbc:mysql://db.internal/app", "db.internal:3306"},
		{"app:pw@tcp(db.internal:3306)/app", ""},
		{"host=db.internal user=app", ""},
		{"file:test.db", ""},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, hostPort(tc.raw))
		})
	}
}

var registeredMock = RegisterMockDriver("testutil-mock", "testutil-alias")

func TestRegisterMockDriver(t *testing.T) {
	found, err := driver.Lookup("testutil-alias")
	require.NoError(t, err)
	assert.Same(t, registeredMock, found)
}

func TestMockDriver(t *testing.T) {
	d := NewMockDriver("testutil-local")

	conn, err := d.Open(context.Background(), driver.Params{URL: "mock://db", Username: "app"})
	require.NoError(t, err)
	require.NoError(t, conn.Ping(context.Background()))
	require.NoError(t, conn.Exec(context.Background(), "SELECT 1"))
	assert.Equal(t, "app", d.Opened()[0].Username)
	assert.EqualValues(t, 1, d.Conns()[0].Execs())
	assert.Equal(t, 1, d.OpenConns())

	d.Conns()[0].Break()
	assert.ErrorIs(t, conn.Ping(context.Background()), ErrMockBroken)

	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())
	assert.Equal(t, 0, d.OpenConns())

	errDown := errors.New("mock: server is down")
	d.SetOpenError(errDown)
	_, err = d.Open(context.Background(), driver.Params{})
	assert.ErrorIs(t, err, errDown)
}
