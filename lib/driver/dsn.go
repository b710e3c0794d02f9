package driver

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DSNBuilder provides a fluent interface for building URL-form
// connection strings.
type DSNBuilder struct {
	scheme   string
	username string
	password string
	host     string
	port     int
	database string
	params   map[string]string
}

// NewDSNBuilder creates a new DSN builder.
func NewDSNBuilder(scheme string) *DSNBuilder {
	return &DSNBuilder{
		scheme: scheme,
		params: make(map[string]string),
	}
}

// Auth sets username and password.
func (b *DSNBuilder) Auth(username, password string) *DSNBuilder {
	b.username = username
	b.password = password
	return b
}

// Host sets the host and port. A zero port is omitted.
func (b *DSNBuilder) Host(host string, port int) *DSNBuilder {
	b.host = host
	b.port = port
	return b
}

// Database sets the database name.
func (b *DSNBuilder) Database(name string) *DSNBuilder {
	b.database = name
	return b
}

// Param adds a single parameter. Empty values are skipped.
func (b *DSNBuilder) Param(key, value string) *DSNBuilder {
	if value != "" {
		b.params[key] = value
	}
	return b
}

// Params adds multiple parameters.
func (b *DSNBuilder) Params(params map[string]string) *DSNBuilder {
	for k, v := range params {
		b.Param(k, v)
	}
	return b
}

// Validate checks that the builder has enough to produce a usable DSN.
func (b *DSNBuilder) Validate() error {
	if b.host == "" {
		return fmt.Errorf("host is required")
	}
	if b.port < 0 || b.port > 65535 {
		return fmt.Errorf("invalid port: %d", b.port)
	}
	return nil
}

// Build constructs the DSN. Parameters are emitted in key order.
func (b *DSNBuilder) Build() string {
	u := url.URL{
		Scheme: b.scheme,
		Host:   b.host,
	}
	if b.port > 0 {
		u.Host = net.JoinHostPort(b.host, strconv.Itoa(b.port))
	}
	if b.username != "" {
		if b.password != "" {
			u.User = url.UserPassword(b.username, b.password)
		} else {
			u.User = url.User(b.username)
		}
	}
	if b.database != "" {
		u.Path = "/" + b.database
	}
	if len(b.params) > 0 {
		q := url.Values{}
		for k, v := range b.params {
			q.Set(k, v)
		}
		// Encode sorts by key
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// jdbcURL is a parsed legacy "jdbc:<subprotocol>:..." connection URL.
type jdbcURL struct {
	subprotocol string
	host        string
	port        int
	database    string
	params      map[string]string
	// opaque holds everything after "jdbc:<subprotocol>:" for
	// file-based URLs such as jdbc:sqlite:/var/lib/app.db.
	opaque string
}

// isJDBCURL reports whether raw uses the legacy JDBC URL form.
func isJDBCURL(raw string) bool {
	return strings.HasPrefix(strings.ToLower(raw), "jdbc:")
}

// parseJDBCURL parses jdbc:postgresql://host:5432/db?k=v style URLs.
// Semicolon-separated MySQL/MariaDB properties are accepted too.
func parseJDBCURL(raw string) (jdbcURL, error) {
	if !isJDBCURL(raw) {
		return jdbcURL{}, fmt.Errorf("not a jdbc url")
	}
	rest := raw[len("jdbc:"):]
	sub, tail, ok := strings.Cut(rest, ":")
	if !ok || sub == "" {
		return jdbcURL{}, fmt.Errorf("jdbc url has no subprotocol")
	}

	j := jdbcURL{subprotocol: strings.ToLower(sub), params: make(map[string]string)}
	if !strings.HasPrefix(tail, "//") {
		j.opaque = tail
		return j, nil
	}

	if i := strings.IndexByte(tail, ';'); i >= 0 && !strings.Contains(tail, "?") {
		tail = tail[:i] + "?" + tail[i+1:]
	}
	tail = strings.ReplaceAll(tail, ";", "&")
	u, err := url.Parse("jdbc:" + tail)
	if err != nil {
		return jdbcURL{}, fmt.Errorf("invalid jdbc url: %w", err)
	}
	j.host = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return jdbcURL{}, fmt.Errorf("invalid jdbc url port %q", p)
		}
		j.port = port
	}
	j.database = strings.TrimPrefix(u.Path, "/")
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			j.params[k] = vs[len(vs)-1]
		}
	}
	return j, nil
}

// sortedKeys returns the keys of m in order, for deterministic DSNs.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
