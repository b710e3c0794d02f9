package pool_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-i2p/dbpool/lib/driver"
	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/go-i2p/dbpool/lib/pool"
	"github.com/go-i2p/dbpool/lib/testutil"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mockDriver = testutil.RegisterMockDriver("pool-mock", "com.example.MockDriver")

func registryConfig(t *testing.T) pool.Config {
	cfg := pool.DefaultConfig()
	cfg.Name = strings.ReplaceAll(t.Name(), "/", "-")
	cfg.Driver = "com.example.MockDriver"
	cfg.URL = "mock://db.internal/app"
	cfg.Username = "app"
	cfg.Password = "secret"
	cfg.MinimumIdle = 0
	cfg.MaximumPoolSize = 4
	cfg.ConnectionTimeout = 2 * time.Second
	return cfg
}

func shutdown(t *testing.T, p *pool.Pool) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, p.Shutdown(ctx))
	})
}

func TestPoolThroughRegistry(t *testing.T) {
	cfg := registryConfig(t)
	cfg.Properties = map[string]string{"application_name": "orders"}
	p, err := pool.New(cfg)
	require.NoError(t, err)
	shutdown(t, p)

	err = p.WithConnection(context.Background(), func(conn driver.Conn) error {
		_, ok := conn.Raw().(*testutil.MockConn)
		assert.True(t, ok)
		return conn.Exec(context.Background(), "SELECT 1")
	})
	require.NoError(t, err)

	opened := mockDriver.Opened()
	require.NotEmpty(t, opened)
	last := opened[len(opened)-1]
	assert.Equal(t, "app", last.Username)
	assert.Equal(t, "secret", last.Password)
	assert.Equal(t, "orders", last.Properties["application_name"])
	assert.True(t, last.AutoCommit)
}

func TestPoolRegistryConnectErrors(t *testing.T) {
	mockDriver.SetOpenError(errors.New("mock: server is down"))
	t.Cleanup(func() { mockDriver.SetOpenError(nil) })

	p, err := pool.New(registryConfig(t))
	require.NoError(t, err)
	shutdown(t, p)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrConnectFailed, "driver errors are classified by the factory")
	assert.True(t, apperrors.IsRetryable(err))
}

func TestPoolFailFastThroughRegistry(t *testing.T) {
	mockDriver.SetOpenError(errors.New("mock: server is down"))
	t.Cleanup(func() { mockDriver.SetOpenError(nil) })

	cfg := registryConfig(t)
	cfg.MinimumIdle = 2
	cfg.InitializationFailFast = true

	_, err := pool.New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConnectFailed)
}

func TestPoolChurnKeepsBounds(t *testing.T) {
	cfg := registryConfig(t)
	cfg.MinimumIdle = 2
	cfg.MaximumPoolSize = 3
	cfg.IdleTimeout = 30 * time.Millisecond
	cfg.MaxLifetime = 80 * time.Millisecond
	p, err := pool.New(cfg)
	require.NoError(t, err)
	shutdown(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 30; j++ {
				err := p.WithConnection(context.Background(), func(conn driver.Conn) error {
					time.Sleep(time.Millisecond)
					return conn.Ping(context.Background())
				})
				if err != nil {
					t.Errorf("WithConnection: %v", err)
					return
				}
				s := p.Stats()
				if s.Total > 3 || s.Active > 3 {
					t.Errorf("pool exceeded its bound: %+v", s)
					return
				}
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		s := p.Stats()
		return s.Idle >= 2 && s.Total <= 3
	}, 2*time.Second, 5*time.Millisecond, "idle connections recover to MinimumIdle after churn")
}

func TestPostgresIntegration(t *testing.T) {
	db := testutil.RequireDatabase(t, "postgres")

	cfg := pool.DefaultConfig()
	cfg.Name = "it-postgres"
	cfg.Driver = db.Driver
	cfg.URL = db.URL
	cfg.MinimumIdle = 1
	cfg.MaximumPoolSize = 2
	cfg.ValidationQuery = "SELECT 1"
	cfg.InitializationFailFast = true
	p, err := pool.New(cfg)
	require.NoError(t, err)
	shutdown(t, p)

	err = p.WithConnection(context.Background(), func(conn driver.Conn) error {
		pg, ok := conn.Raw().(*pgx.Conn)
		require.True(t, ok)
		var n int
		if err := pg.QueryRow(context.Background(), "SELECT 40 + 2").Scan(&n); err != nil {
			return err
		}
		assert.Equal(t, 42, n)
		return nil
	})
	require.NoError(t, err)
}

func TestMySQLIntegration(t *testing.T) {
	db := testutil.RequireDatabase(t, "mysql")

	cfg := pool.DefaultConfig()
	cfg.Name = "it-mysql"
	cfg.Driver = db.Driver
	cfg.URL = db.URL
	cfg.MaximumPoolSize = 2
	cfg.ValidationQuery = "SELECT 1"
	p, err := pool.New(cfg)
	require.NoError(t, err)
	shutdown(t, p)

	err = p.WithConnection(context.Background(), func(conn driver.Conn) error {
		return conn.Exec(context.Background(), "DO 1")
	})
	require.NoError(t, err)
}

func TestSQLiteIntegration(t *testing.T) {
	cfg := pool.DefaultConfig()
	cfg.Name = "it-sqlite"
	cfg.Driver = "org.sqlite.JDBC"
	cfg.URL = "jdbc:sqlite::memory:"
	cfg.MinimumIdle = 0
	cfg.MaximumPoolSize = 1
	p, err := pool.New(cfg)
	require.NoError(t, err)
	shutdown(t, p)

	err = p.WithConnection(context.Background(), func(conn driver.Conn) error {
		return conn.Exec(context.Background(), "CREATE TABLE jobs (id INTEGER PRIMARY KEY)")
	})
	if err != nil && strings.Contains(err.Error(), "cgo") {
		t.Skip("sqlite3 requires cgo")
	}
	require.NoError(t, err)
}
