package driver

import (
	"testing"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupBuiltins(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"postgres", "postgres"},
		{"pgx", "postgres"},
		{"postgresql", "postgres"},
		{"org.postgresql.Driver", "postgres"},
		{"mysql", "mysql"},
		{"mariadb", "mysql"},
		{"com.mysql.jdbc.Driver", "mysql"},
		{"com.mysql.cj.jdbc.Driver", "mysql"},
		{"org.mariadb.jdbc.Driver", "mysql"},
		{"sqlite3", "sqlite3"},
		{"sqlite", "sqlite3"},
		{"org.sqlite.JDBC", "sqlite3"},
		{"  Postgres ", "postgres"},
		{"MYSQL", "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			d, err := Lookup(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("oracle.jdbc.OracleDriver")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDriverNotFound)
	assert.Contains(t, err.Error(), "oracle.jdbc.OracleDriver")
}

func TestDrivers(t *testing.T) {
	names := Drivers()
	assert.Contains(t, names, "postgres")
	assert.Contains(t, names, "mysql")
	assert.Contains(t, names, "sqlite3")
	assert.NotContains(t, names, "pgx", "aliases are not listed")
	assert.IsIncreasing(t, names)
}

func TestRegister(t *testing.T) {
	d := &fakeDriver{name: "fake-register"}
	registerTest(t, d, "fake-register-alias")

	got, err := Lookup("fake-register-alias")
	require.NoError(t, err)
	assert.Same(t, d, got)

	assert.Panics(t, func() { Register(&fakeDriver{name: "fake-register"}) })
	assert.Panics(t, func() { Register(nil) })
}

func TestRegisterAgainAfterCleanup(t *testing.T) {
	for i := 0; i < 2; i++ {
		t.Run("register", func(t *testing.T) {
			registerTest(t, &fakeDriver{name: "fake-rerun"})
			_, err := Lookup("fake-rerun")
			require.NoError(t, err)
		})
	}
	_, err := Lookup("fake-rerun")
	assert.ErrorIs(t, err, apperrors.ErrDriverNotFound)
}
