package driver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteDriver struct{}

func (sqliteDriver) Name() string { return "sqlite3" }

func (sqliteDriver) CheckParams(p Params) error {
	if !p.AutoCommit {
		return errors.New("sqlite3: auto_commit=false is not supported, use explicit transactions")
	}
	_, err := sqliteDSN(p)
	return err
}

func (sqliteDriver) Open(ctx context.Context, p Params) (Conn, error) {
	dsn, err := sqliteDSN(p)
	if err != nil {
		return nil, err
	}
	return openSQL(ctx, "sqlite3", dsn)
}

// sqliteDSN accepts a file path, a file: URI, ":memory:" or a legacy
// jdbc:sqlite: URL. Properties are appended as URI parameters, e.g.
// _busy_timeout or _journal_mode.
func sqliteDSN(p Params) (string, error) {
	dsn := p.URL
	if isJDBCURL(dsn) {
		j, err := parseJDBCURL(dsn)
		if err != nil {
			return "", err
		}
		if j.subprotocol != "sqlite" {
			return "", fmt.Errorf("sqlite3: unexpected jdbc subprotocol %q", j.subprotocol)
		}
		dsn = j.opaque
	}
	if dsn == "" {
		return "", errors.New("sqlite3: empty database path")
	}
	if len(p.Properties) == 0 {
		return dsn, nil
	}

	q := url.Values{}
	for _, k := range sortedKeys(p.Properties) {
		q.Set(k, p.Properties[k])
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + q.Encode(), nil
}
