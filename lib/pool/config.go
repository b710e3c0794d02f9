package pool

import (
	"maps"
	"time"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/go-i2p/dbpool/lib/validation"
)

// Defaults applied by DefaultConfig.
const (
	DefaultMinimumIdle        = 1
	DefaultMaximumPoolSize    = 10
	DefaultConnectionTimeout  = 30 * time.Second
	DefaultIdleTimeout        = 10 * time.Minute
	DefaultMaxLifetime        = 30 * time.Minute
	DefaultHousekeepingPeriod = 30 * time.Second

	// minHousekeepingPeriod is the floor for a derived reaper period.
	minHousekeepingPeriod = 10 * time.Millisecond
)

// Config configures a pool. It is copied by New and never changes afterwards.
type Config struct {
	// Name labels metrics and log lines. Empty means "pool-<ulid>".
	Name string
	// Driver is a registered driver identifier or legacy JDBC class name.
	Driver string
	// URL is the connection string handed to the driver.
	URL string
	// Username and Password override credentials in URL when non-empty.
	Username string
	Password string
	// Properties are driver-specific connection properties.
	Properties map[string]string

	// MinimumIdle is the number of idle connections the filler maintains.
	MinimumIdle int
	// MaximumPoolSize caps open connections, in use and idle together.
	MaximumPoolSize int
	// ConnectionTimeout bounds Acquire when the context has no deadline.
	// Zero waits until the context is done.
	ConnectionTimeout time.Duration
	// IdleTimeout retires connections idle for longer. Zero disables it.
	IdleTimeout time.Duration
	// MaxLifetime retires connections older than this. Zero disables it.
	MaxLifetime time.Duration

	// ValidationQuery is run to validate a connection. Empty uses the
	// driver's native ping.
	ValidationQuery string
	// ValidationTimeout bounds one validation. Zero means 5s.
	ValidationTimeout time.Duration
	// ValidateOnBorrow validates idle connections before handing them out.
	ValidateOnBorrow bool
	// AutoCommit is passed to the driver.
	AutoCommit bool

	// HousekeepingPeriod is the reaper interval. Zero means 30s, shortened
	// to half of IdleTimeout or MaxLifetime when either is shorter.
	HousekeepingPeriod time.Duration
	// InitializationFailFast makes New open MinimumIdle connections
	// synchronously and fail when any of them cannot be opened.
	InitializationFailFast bool
}

// DefaultConfig returns a Config with the standard defaults. Driver and URL
// still have to be set.
func DefaultConfig() Config {
	return Config{
		MinimumIdle:        DefaultMinimumIdle,
		MaximumPoolSize:    DefaultMaximumPoolSize,
		ConnectionTimeout:  DefaultConnectionTimeout,
		IdleTimeout:        DefaultIdleTimeout,
		MaxLifetime:        DefaultMaxLifetime,
		ValidationTimeout:  validation.DefaultValidationTimeout,
		ValidateOnBorrow:   true,
		AutoCommit:         true,
		HousekeepingPeriod: DefaultHousekeepingPeriod,
	}
}

// Validate checks the sizing and timing fields. Every violation is
// reported; the error matches apperrors.ErrConfiguration.
func (c Config) Validate() error {
	var errs validation.Errors
	errs.Add(validation.MaxLength("name", c.Name, validation.MaxPoolNameLength))
	errs.Add(validation.IntRange("maximum_pool_size", c.MaximumPoolSize, 1, validation.MaxPoolSize))
	errs.Add(validation.IntRange("minimum_idle", c.MinimumIdle, 0, validation.MaxPoolSize))
	errs.Add(validation.AtMost("minimum_idle", c.MinimumIdle, "maximum_pool_size", c.MaximumPoolSize))
	errs.Add(validation.NonNegativeDuration("connection_timeout", c.ConnectionTimeout))
	errs.Add(validation.NonNegativeDuration("idle_timeout", c.IdleTimeout))
	errs.Add(validation.NonNegativeDuration("max_lifetime", c.MaxLifetime))
	errs.Add(validation.NonNegativeDuration("validation_timeout", c.ValidationTimeout))
	errs.Add(validation.NonNegativeDuration("housekeeping_period", c.HousekeepingPeriod))

	if errs.HasErrors() {
		return apperrors.ConfigError(errs)
	}
	return nil
}

// validateConnection checks the fields only needed when the pool opens
// connections through the driver registry.
func (c Config) validateConnection() error {
	return apperrors.ConfigError(validation.All(
		func() error { return validation.Required("driver", c.Driver) },
		func() error { return validation.ConnectionURL("url", c.URL) },
	))
}

// housekeepingPeriod returns the reaper interval.
func (c Config) housekeepingPeriod() time.Duration {
	period := c.HousekeepingPeriod
	if period <= 0 {
		period = DefaultHousekeepingPeriod
	}
	for _, limit := range []time.Duration{c.IdleTimeout, c.MaxLifetime} {
		if limit > 0 && limit < period {
			period = limit / 2
		}
	}
	if period < minHousekeepingPeriod {
		period = minHousekeepingPeriod
	}
	return period
}

func (c Config) clone() Config {
	c.Properties = maps.Clone(c.Properties)
	return c
}
