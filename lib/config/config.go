// Package config loads pool options from TOML, YAML or JSON files and
// converts them into a pool.Config.
//
// Keys are snake_case in every format. Durations are whole milliseconds.
// The legacy sizing keys initial_size, min_idle, max_total and max_idle are
// still accepted so older deployment files keep working.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/go-i2p/dbpool/lib/pool"
	"github.com/go-i2p/dbpool/lib/validation"
	"github.com/go-i2p/logger"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var log = logger.GetGoI2PLogger()

// Environment variables applied after the file is read.
const (
	EnvDriver   = "DBPOOL_DRIVER"
	EnvURL      = "DBPOOL_URL"
	EnvUsername = "DBPOOL_USERNAME"
	EnvPassword = "DBPOOL_PASSWORD"
)

// Options is the on-disk form of a pool configuration.
type Options struct {
	// Name labels metrics and log lines. Empty picks a generated name.
	Name string `toml:"name" yaml:"name" json:"name"`
	// DriverClassName is a driver id ("postgres") or a legacy class name
	// ("org.postgresql.Driver").
	DriverClassName string `toml:"driver_class_name" yaml:"driver_class_name" json:"driver_class_name"`
	URL             string `toml:"url" yaml:"url" json:"url"`
	Username        string `toml:"username" yaml:"username" json:"username"`
	Password        string `toml:"password" yaml:"password" json:"password"`

	ValidationQuery     string `toml:"validation_query" yaml:"validation_query" json:"validation_query"`
	ValidateOnBorrow    bool   `toml:"validate_on_borrow" yaml:"validate_on_borrow" json:"validate_on_borrow"`
	ValidationTimeoutMs int64  `toml:"validation_timeout_ms" yaml:"validation_timeout_ms" json:"validation_timeout_ms"`

	MinimumIdle          int   `toml:"minimum_idle" yaml:"minimum_idle" json:"minimum_idle"`
	MaximumPoolSize      int   `toml:"maximum_pool_size" yaml:"maximum_pool_size" json:"maximum_pool_size"`
	ConnectionTimeoutMs  int64 `toml:"connection_timeout_ms" yaml:"connection_timeout_ms" json:"connection_timeout_ms"`
	IdleTimeoutMs        int64 `toml:"idle_timeout_ms" yaml:"idle_timeout_ms" json:"idle_timeout_ms"`
	MaxLifetimeMs        int64 `toml:"max_lifetime_ms" yaml:"max_lifetime_ms" json:"max_lifetime_ms"`
	HousekeepingPeriodMs int64 `toml:"housekeeping_period_ms" yaml:"housekeeping_period_ms" json:"housekeeping_period_ms"`

	AutoCommit             bool `toml:"auto_commit" yaml:"auto_commit" json:"auto_commit"`
	InitializationFailFast bool `toml:"initialization_fail_fast" yaml:"initialization_fail_fast" json:"initialization_fail_fast"`

	ConnectionProperties map[string]string `toml:"connection_properties,omitempty" yaml:"connection_properties,omitempty" json:"connection_properties,omitempty"`

	// Legacy sizing keys. When set, InitialSize and then MinIdle replace
	// MinimumIdle and MaxTotal replaces MaximumPoolSize. MaxIdle is ignored.
	InitialSize *int `toml:"initial_size,omitempty" yaml:"initial_size,omitempty" json:"initial_size,omitempty"`
	MinIdle     *int `toml:"min_idle,omitempty" yaml:"min_idle,omitempty" json:"min_idle,omitempty"`
	MaxTotal    *int `toml:"max_total,omitempty" yaml:"max_total,omitempty" json:"max_total,omitempty"`
	MaxIdle     *int `toml:"max_idle,omitempty" yaml:"max_idle,omitempty" json:"max_idle,omitempty"`
}

// Default returns Options holding the pool defaults.
func Default() *Options {
	d := pool.DefaultConfig()
	return &Options{
		ValidateOnBorrow:     d.ValidateOnBorrow,
		ValidationTimeoutMs:  d.ValidationTimeout.Milliseconds(),
		MinimumIdle:          d.MinimumIdle,
		MaximumPoolSize:      d.MaximumPoolSize,
		ConnectionTimeoutMs:  d.ConnectionTimeout.Milliseconds(),
		IdleTimeoutMs:        d.IdleTimeout.Milliseconds(),
		MaxLifetimeMs:        d.MaxLifetime.Milliseconds(),
		HousekeepingPeriodMs: d.HousekeepingPeriod.Milliseconds(),
		AutoCommit:           d.AutoCommit,
	}
}

// Load reads options from path. The format follows the extension: .yaml
// and .yml are YAML, .json is JSON, anything else is TOML. A missing file
// yields the defaults. Unknown keys are rejected. Environment overrides are
// applied last and the result is validated.
func Load(path string) (*Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		log.WithField("path", path).Debug("config file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := decode(path, data, opts); err != nil {
			return nil, apperrors.ConfigError(fmt.Errorf("parsing config file %s: %w", path, err))
		}
	}

	opts.applyLegacy()
	opts.applyEnv()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Parse decodes options in the given format ("toml", "yaml" or "json")
// without touching the file system or the environment.
func Parse(format string, data []byte) (*Options, error) {
	opts := Default()
	if err := decode("."+format, data, opts); err != nil {
		return nil, apperrors.ConfigError(err)
	}
	opts.applyLegacy()
	return opts, nil
}

func decode(path string, data []byte, opts *Options) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(opts); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(opts)
	default:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(opts)
	}
}

// applyLegacy folds the legacy sizing keys into the current ones.
func (o *Options) applyLegacy() {
	if o.InitialSize != nil {
		o.MinimumIdle = *o.InitialSize
	}
	if o.MinIdle != nil {
		o.MinimumIdle = *o.MinIdle
	}
	if o.MaxTotal != nil {
		o.MaximumPoolSize = *o.MaxTotal
	}
	if o.MaxIdle != nil {
		log.WithField("max_idle", *o.MaxIdle).Debug("ignoring legacy max_idle")
	}
	o.InitialSize, o.MinIdle, o.MaxTotal, o.MaxIdle = nil, nil, nil, nil
}

func (o *Options) applyEnv() {
	for env, field := range map[string]*string{
		EnvDriver:   &o.DriverClassName,
		EnvURL:      &o.URL,
		EnvUsername: &o.Username,
		EnvPassword: &o.Password,
	} {
		if v, ok := os.LookupEnv(env); ok {
			*field = v
			log.WithField("env", env).Debug("config overridden from environment")
		}
	}
}

// Save writes opts to path as TOML, creating the parent directory. The
// file is readable by the owner only since it may hold a password.
func Save(opts *Options, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate reports the first invalid option. The error matches
// apperrors.ErrConfiguration.
func (o *Options) Validate() error {
	return apperrors.ConfigError(validation.All(
		func() error { return validation.MaxLength("name", o.Name, validation.MaxPoolNameLength) },
		func() error { return validation.Required("driver_class_name", o.DriverClassName) },
		func() error { return validation.ConnectionURL("url", o.URL) },
		func() error {
			return validation.IntRange("maximum_pool_size", o.MaximumPoolSize, 1, validation.MaxPoolSize)
		},
		func() error { return validation.IntRange("minimum_idle", o.MinimumIdle, 0, validation.MaxPoolSize) },
		func() error {
			return validation.AtMost("minimum_idle", o.MinimumIdle, "maximum_pool_size", o.MaximumPoolSize)
		},
		func() error { return millis("validation_timeout_ms", o.ValidationTimeoutMs) },
		func() error { return millis("connection_timeout_ms", o.ConnectionTimeoutMs) },
		func() error { return millis("idle_timeout_ms", o.IdleTimeoutMs) },
		func() error { return millis("max_lifetime_ms", o.MaxLifetimeMs) },
		func() error { return millis("housekeeping_period_ms", o.HousekeepingPeriodMs) },
	))
}

// maxMillis is the largest millisecond value a time.Duration can hold.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

func millis(field string, ms int64) error {
	if ms > maxMillis {
		return validation.NewResult(field, fmt.Sprintf("must be at most %d", maxMillis), validation.ErrOutOfRange)
	}
	return validation.NonNegativeDuration(field, time.Duration(ms)*time.Millisecond)
}

// PoolConfig converts the options into a pool.Config.
func (o *Options) PoolConfig() pool.Config {
	ms := func(v int64) time.Duration { return time.Duration(v) * time.Millisecond }
	return pool.Config{
		Name:                   o.Name,
		Driver:                 o.DriverClassName,
		URL:                    o.URL,
		Username:               o.Username,
		Password:               o.Password,
		Properties:             maps.Clone(o.ConnectionProperties),
		MinimumIdle:            o.MinimumIdle,
		MaximumPoolSize:        o.MaximumPoolSize,
		ConnectionTimeout:      ms(o.ConnectionTimeoutMs),
		IdleTimeout:            ms(o.IdleTimeoutMs),
		MaxLifetime:            ms(o.MaxLifetimeMs),
		ValidationQuery:        o.ValidationQuery,
		ValidationTimeout:      ms(o.ValidationTimeoutMs),
		ValidateOnBorrow:       o.ValidateOnBorrow,
		AutoCommit:             o.AutoCommit,
		HousekeepingPeriod:     ms(o.HousekeepingPeriodMs),
		InitializationFailFast: o.InitializationFailFast,
	}
}
