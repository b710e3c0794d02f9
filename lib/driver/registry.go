package driver

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

var registry = struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}{
	drivers: make(map[string]Driver),
}

// Register makes a driver available under its Name and any aliases.
// It panics if d is nil or an identifier is already taken.
func Register(d Driver, aliases ...string) {
	if d == nil {
		panic("driver: Register driver is nil")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	for _, id := range append([]string{d.Name()}, aliases...) {
		if _, dup := registry.drivers[id]; dup {
			panic("driver: Register called twice for " + id)
		}
		registry.drivers[id] = d
	}
}

// Lookup returns the driver registered under id. Identifiers are matched
// exactly first, then case-insensitively.
func Lookup(id string) (Driver, error) {
	id = strings.TrimSpace(id)

	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if d, ok := registry.drivers[id]; ok {
		return d, nil
	}
	for name, d := range registry.drivers {
		if strings.EqualFold(name, id) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", apperrors.ErrDriverNotFound, id)
}

// Drivers returns the sorted canonical names of the registered drivers.
func Drivers() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, d := range registry.drivers {
		seen[d.Name()] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(newPostgresDriver(), "pgx", "postgresql", "org.postgresql.Driver")
	Register(mysqlDriver{}, "mariadb", "com.mysql.jdbc.Driver", "com.mysql.cj.jdbc.Driver", "org.mariadb.jdbc.Driver")
	Register(sqliteDriver{}, "sqlite", "org.sqlite.JDBC")
}
