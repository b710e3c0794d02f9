package driver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	// postgresConfigCacheSize bounds the number of parsed configs kept.
	postgresConfigCacheSize = 64

	// pgCloseTimeout bounds the graceful Terminate message on close.
	pgCloseTimeout = 5 * time.Second
)

// postgresDriver opens native pgx connections. Parsing a connection string
// is comparatively expensive (service files, passfiles, env), so parsed
// configs are cached per connection string and copied for every open.
type postgresDriver struct {
	configs *lru.Cache[string, *pgx.ConnConfig]
}

func newPostgresDriver() *postgresDriver {
	cache, err := lru.New[string, *pgx.ConnConfig](postgresConfigCacheSize)
	if err != nil {
		panic(err)
	}
	return &postgresDriver{configs: cache}
}

func (d *postgresDriver) Name() string { return "postgres" }

// CheckParams rejects auto_commit=false; pgx has no session-wide switch
// and callers are expected to use explicit transactions instead.
func (d *postgresDriver) CheckParams(p Params) error {
	if !p.AutoCommit {
		return errors.New("postgres: auto_commit=false is not supported, use explicit transactions")
	}
	_, err := d.config(p)
	return err
}

func (d *postgresDriver) Open(ctx context.Context, p Params) (Conn, error) {
	cfg, err := d.config(p)
	if err != nil {
		return nil, err
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &pgConn{conn: conn}, nil
}

// IsAuthError reports SQLSTATE class 28 (invalid authorization specification).
func (d *postgresDriver) IsAuthError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "28")
}

// config returns a private copy of the parsed config for p.
func (d *postgresDriver) config(p Params) (*pgx.ConnConfig, error) {
	dsn, err := postgresDSN(p.URL, p.Properties)
	if err != nil {
		return nil, err
	}

	cached, ok := d.configs.Get(dsn)
	if !ok {
		cached, err = pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.configs.Add(dsn, cached)
	}

	cfg := cached.Copy()
	if p.Username != "" {
		cfg.User = p.Username
	}
	if p.Password != "" {
		cfg.Password = p.Password
	}
	return cfg, nil
}

// postgresDSN merges properties into a URL or key/value connection string.
// pgx treats settings it does not recognize as session runtime parameters.
func postgresDSN(raw string, props map[string]string) (string, error) {
	if isJDBCURL(raw) {
		j, err := parseJDBCURL(raw)
		if err != nil {
			return "", err
		}
		if j.subprotocol != "postgresql" && j.subprotocol != "postgres" {
			return "", fmt.Errorf("postgres: unexpected jdbc subprotocol %q", j.subprotocol)
		}
		raw = NewDSNBuilder("postgres").
			Host(j.host, j.port).
			Database(j.database).
			Params(j.params).
			Build()
	}
	if len(props) == 0 {
		return raw, nil
	}

	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("postgres: invalid url: %w", err)
		}
		q := u.Query()
		for _, k := range sortedKeys(props) {
			q.Set(k, props[k])
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	var b strings.Builder
	b.WriteString(raw)
	for _, k := range sortedKeys(props) {
		v := strings.ReplaceAll(props[k], `\`, `\\`)
		v = strings.ReplaceAll(v, `'`, `\'`)
		fmt.Fprintf(&b, " %s='%s'", k, v)
	}
	return strings.TrimSpace(b.String()), nil
}

// pgConn adapts *pgx.Conn to Conn.
type pgConn struct {
	conn *pgx.Conn
}

func (c *pgConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *pgConn) Exec(ctx context.Context, query string) error {
	_, err := c.conn.Exec(ctx, query)
	return err
}

func (c *pgConn) IsClosed() bool {
	return c.conn.IsClosed()
}

func (c *pgConn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), pgCloseTimeout)
	defer cancel()
	return c.conn.Close(ctx)
}

func (c *pgConn) Raw() any {
	return c.conn
}
