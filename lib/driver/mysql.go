package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers treated as credential rejections.
const (
	mysqlAccessDenied       = 1045 // ER_ACCESS_DENIED_ERROR
	mysqlAccessDeniedNoPass = 1698 // ER_ACCESS_DENIED_NO_PASSWORD_ERROR
)

type mysqlDriver struct{}

func (mysqlDriver) Name() string { return "mysql" }

func (mysqlDriver) CheckParams(p Params) error {
	_, err := mysqlDSN(p)
	return err
}

func (mysqlDriver) Open(ctx context.Context, p Params) (Conn, error) {
	dsn, err := mysqlDSN(p)
	if err != nil {
		return nil, err
	}
	var init []string
	if !p.AutoCommit {
		init = append(init, "SET autocommit=0")
	}
	return openSQL(ctx, "mysql", dsn, init...)
}

func (mysqlDriver) IsAuthError(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == mysqlAccessDenied || myErr.Number == mysqlAccessDeniedNoPass
}

// mysqlDSN turns p into a go-sql-driver DSN. Legacy jdbc:mysql:// and
// jdbc:mariadb:// URLs are translated; properties become DSN parameters.
func mysqlDSN(p Params) (string, error) {
	var cfg *mysql.Config
	if isJDBCURL(p.URL) {
		j, err := parseJDBCURL(p.URL)
		if err != nil {
			return "", err
		}
		if j.subprotocol != "mysql" && j.subprotocol != "mariadb" {
			return "", fmt.Errorf("mysql: unexpected jdbc subprotocol %q", j.subprotocol)
		}
		port := j.port
		if port == 0 {
			port = 3306
		}
		cfg = mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(j.host, strconv.Itoa(port))
		cfg.DBName = j.database
		for k, v := range j.params {
			switch k {
			case "user":
				cfg.User = v
			case "password":
				cfg.Passwd = v
			default:
				setMySQLParam(cfg, k, v)
			}
		}
	} else {
		var err error
		cfg, err = mysql.ParseDSN(p.URL)
		if err != nil {
			return "", fmt.Errorf("mysql: %w", err)
		}
	}

	if p.Username != "" {
		cfg.User = p.Username
	}
	if p.Password != "" {
		cfg.Passwd = p.Password
	}
	for _, k := range sortedKeys(p.Properties) {
		setMySQLParam(cfg, k, p.Properties[k])
	}
	return cfg.FormatDSN(), nil
}

func setMySQLParam(cfg *mysql.Config, k, v string) {
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	cfg.Params[k] = v
}
