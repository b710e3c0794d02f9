// Package resilience protects the pool from a misbehaving database.
// This file implements the circuit breaker that guards the connection factory.
//
// When the backend refuses connections, every waiter and the background
// filler would otherwise keep dialing it. After FailureThreshold consecutive
// connect failures the breaker opens and connect attempts fail immediately
// until Timeout has passed; then a few probe attempts decide whether it closes.
//
// State transitions:
//
//	Closed (normal) -> Open (failing) -> HalfOpen (probing) -> Closed
//	                     ^                    |
//	                     +--------------------+ (if a probe fails)
package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state - connects pass through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit is tripped - connects fail immediately.
	CircuitOpen
	// CircuitHalfOpen means a limited number of probe connects are allowed.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes before closing.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// MaxHalfOpenRequests caps concurrent probes while half-open.
	MaxHalfOpenRequests int
	// IsFailure decides whether an error counts against the circuit.
	// Nil counts every error except context cancellation.
	IsFailure func(error) bool
}

// DefaultCircuitBreakerConfig returns defaults suited to database connects.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		SuccessThreshold:    1,
		Timeout:             5 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	mu     sync.Mutex
	config CircuitBreakerConfig
	name   string

	state                CircuitState
	failureCount         int
	successCount         int
	halfOpenRequestCount int

	lastFailureTime time.Time
	lastStateChange time.Time
	openedAt        time.Time

	onStateChange func(from, to CircuitState)
}

// NewCircuitBreaker creates a circuit breaker. The name becomes the
// circuit label on the breaker metrics; zero config fields take defaults.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxHalfOpenRequests <= 0 {
		cfg.MaxHalfOpenRequests = def.MaxHalfOpenRequests
	}

	circuitState.WithLabelValues(name).Set(float64(CircuitClosed))
	return &CircuitBreaker{
		config:          cfg,
		name:            name,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
	}
}

// SetStateChangeCallback sets the callback for state changes. The callback
// runs on its own goroutine.
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// State returns the current circuit state. An open circuit whose timeout has
// elapsed reports half-open; the transition itself happens on the next Allow.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.effectiveStateLocked()
}

func (cb *CircuitBreaker) effectiveStateLocked() CircuitState {
	if cb.state == CircuitOpen && time.Since(cb.openedAt) >= cb.config.Timeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Allow reports whether a connect attempt may proceed. Every true result
// must be followed by RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.openedAt) >= cb.config.Timeout {
			cb.transitionTo(CircuitHalfOpen)
			cb.halfOpenRequestCount = 1
			return true
		}
		return false
	case CircuitHalfOpen:
		if cb.halfOpenRequestCount < cb.config.MaxHalfOpenRequests {
			cb.halfOpenRequestCount++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful connect.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0
	case CircuitHalfOpen:
		cb.successCount++
		if cb.halfOpenRequestCount > 0 {
			cb.halfOpenRequestCount--
		}
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.transitionTo(CircuitClosed)
		}
	case CircuitOpen:
		// A connect that started before the circuit opened.
		log.WithField("circuit", cb.name).Debug("success recorded while circuit open")
	}
}

// RecordFailure records a failed connect.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transitionTo(CircuitOpen)
	case CircuitOpen:
	}
}

// transitionTo changes the circuit state. Must be called with the lock held.
func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = time.Now()

	switch newState {
	case CircuitClosed:
		cb.failureCount = 0
		cb.successCount = 0
		cb.halfOpenRequestCount = 0
	case CircuitOpen:
		cb.openedAt = time.Now()
		cb.successCount = 0
		cb.halfOpenRequestCount = 0
		circuitTrips.WithLabelValues(cb.name).Inc()
	case CircuitHalfOpen:
		cb.successCount = 0
		cb.halfOpenRequestCount = 0
	}
	circuitState.WithLabelValues(cb.name).Set(float64(newState))

	entry := log.WithField("circuit", cb.name).
		WithField("from", oldState.String()).
		WithField("to", newState.String())
	if newState == CircuitOpen {
		entry.Warn("circuit breaker opened, suspending connect attempts")
	} else {
		entry.Info("circuit breaker state transition")
	}

	if cb.onStateChange != nil {
		go cb.onStateChange(oldState, newState)
	}
}

// Execute runs fn if the circuit allows it and records the outcome.
// A rejected call returns an error wrapping ErrCircuitOpen without running
// fn. Context cancellation is returned as is and never counts as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cb.Allow() {
		circuitRejections.WithLabelValues(cb.name).Inc()
		return fmt.Errorf("%s: %w", cb.name, ErrCircuitOpen)
	}

	err := fn(ctx)
	switch {
	case err == nil:
		cb.RecordSuccess()
		return nil
	case ctx.Err() != nil:
		cb.release()
		return ctx.Err()
	case cb.config.IsFailure != nil && !cb.config.IsFailure(err):
		cb.RecordSuccess()
		return err
	default:
		cb.RecordFailure()
		return err
	}
}

// release returns a half-open probe slot without recording an outcome.
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitHalfOpen && cb.halfOpenRequestCount > 0 {
		cb.halfOpenRequestCount--
	}
}

// ForceOpen forces the circuit to open state.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(CircuitOpen)
}

// Reset resets the circuit breaker to its initial closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenRequestCount = 0
	cb.lastStateChange = time.Now()
	cb.openedAt = time.Time{}
	circuitState.WithLabelValues(cb.name).Set(float64(CircuitClosed))
}

// Stats returns current circuit breaker statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		Name:            cb.name,
		State:           cb.effectiveStateLocked(),
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		LastFailureTime: cb.lastFailureTime,
		LastStateChange: cb.lastStateChange,
	}
}

// CircuitBreakerStats holds statistics for a circuit breaker.
type CircuitBreakerStats struct {
	Name            string       `json:"name"`
	State           CircuitState `json:"-"`
	FailureCount    int          `json:"failure_count"`
	SuccessCount    int          `json:"success_count"`
	LastFailureTime time.Time    `json:"last_failure_time"`
	LastStateChange time.Time    `json:"last_state_change"`
}

// IsOpen returns true if the circuit is currently rejecting connects.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == CircuitOpen
}

// Name returns the name of this circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Forget removes the metric series of this breaker.
func (cb *CircuitBreaker) Forget() {
	circuitState.DeleteLabelValues(cb.name)
	circuitTrips.DeleteLabelValues(cb.name)
	circuitRejections.DeleteLabelValues(cb.name)
}
