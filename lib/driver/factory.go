package driver

import (
	"context"
	"errors"
	"fmt"
	"maps"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/go-i2p/dbpool/lib/resilience"
)

// Factory opens connections for one pool. It never retries; a failed
// Create returns an error wrapping apperrors.ErrConnectFailed (or
// apperrors.ErrAuthenticationFailed for rejected credentials).
//
// Consecutive failures trip a circuit breaker; while it is open Create
// fails immediately with an error that also matches apperrors.ErrCircuitOpen.
type Factory struct {
	driver  Driver
	params  Params
	breaker *resilience.CircuitBreaker
}

// NewFactory resolves driverID and binds it to p. The name labels the
// factory's circuit breaker and log lines, usually the pool name.
func NewFactory(name, driverID string, p Params, breaker resilience.CircuitBreakerConfig) (*Factory, error) {
	d, err := Lookup(driverID)
	if err != nil {
		return nil, err
	}

	p.Properties = maps.Clone(p.Properties)
	if pc, ok := d.(ParamsChecker); ok {
		if err := pc.CheckParams(p); err != nil {
			return nil, apperrors.ConfigError(err)
		}
	}

	return &Factory{
		driver:  d,
		params:  p,
		breaker: resilience.NewCircuitBreaker(name, breaker),
	}, nil
}

// Driver returns the resolved driver.
func (f *Factory) Driver() Driver {
	return f.driver
}

// Breaker returns the circuit breaker guarding Create.
func (f *Factory) Breaker() *resilience.CircuitBreaker {
	return f.breaker
}

// Create opens a new physical connection.
func (f *Factory) Create(ctx context.Context) (Conn, error) {
	var conn Conn
	err := f.breaker.Execute(ctx, func(ctx context.Context) error {
		c, err := f.driver.Open(ctx, f.params)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("driver %s returned no connection", f.driver.Name())
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, f.classify(err)
	}

	log.WithField("driver", f.driver.Name()).WithField("circuit", f.breaker.Name()).Debug("opened connection")
	return conn, nil
}

func (f *Factory) classify(err error) error {
	name := f.driver.Name()
	if errors.Is(err, apperrors.ErrConnectFailed) {
		return err
	}
	if ac, ok := f.driver.(AuthClassifier); ok && ac.IsAuthError(err) {
		log.WithField("driver", name).WithError(err).Warn("authentication rejected")
		return apperrors.AuthError(name, err)
	}
	if !errors.Is(err, apperrors.ErrCircuitOpen) {
		log.WithField("driver", name).WithError(err).Warn("connect failed")
	}
	return apperrors.ConnectError(name, err)
}

// Close drops the metric series of the factory's circuit breaker.
func (f *Factory) Close() error {
	f.breaker.Forget()
	return nil
}
