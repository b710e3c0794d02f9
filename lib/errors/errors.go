// Package errors provides structured error types for dbpool.
// Callers classify failures with errors.Is against the sentinels below;
// the structured Error type carries a code and a message that is safe to
// show to clients (it never includes URLs or credentials).
//
// This package provides:
//   - Sentinel errors for every pool failure class
//   - Error codes used by the status server to pick HTTP statuses
//   - Error wrapping with context preservation
//   - Retry classification for acquire callers
package errors

import (
	"errors"
	"fmt"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Error codes for categorizing errors.
const (
	CodeInternal       = 1000 // Internal error
	CodeConfiguration  = 1001 // Invalid pool configuration
	CodeDriverNotFound = 1002 // Driver identifier not registered
	CodeConnection     = 1003 // Physical connect failed
	CodeAuthentication = 1004 // Backend rejected credentials
	CodeTimeout        = 1005 // Acquire wait exceeded
	CodeUnavailable    = 1006 // Pool shutting down or closed
	CodeState          = 1007 // Invalid lease state (double release etc.)
	CodeCircuitOpen    = 1008 // Connect attempts suspended
)

// Generic sentinel errors. Pool-specific errors wrap one of these so
// callers can match on either level.
var (
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnavailable indicates a service is unavailable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrClosed indicates a resource is closed.
	ErrClosed = errors.New("closed")

	// ErrInvalidState indicates an invalid state transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrConnection indicates a connection error.
	ErrConnection = errors.New("connection error")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")

	// ErrConfiguration indicates a configuration error.
	ErrConfiguration = errors.New("configuration error")

	// ErrCircuitOpen indicates the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Connection factory errors
var (
	// ErrDriverNotFound indicates the driver identifier is not registered.
	ErrDriverNotFound = errors.New("driver: not found")

	// ErrConnectFailed indicates a physical connection could not be opened.
	ErrConnectFailed = fmt.Errorf("driver: connect failed: %w", ErrConnection)

	// ErrAuthenticationFailed indicates the backend rejected the credentials.
	ErrAuthenticationFailed = fmt.Errorf("driver: authentication failed: %w", ErrConnectFailed)
)

// Pool errors
var (
	// ErrAcquireTimeout indicates no connection became available in time.
	ErrAcquireTimeout = fmt.Errorf("pool: acquire: %w", ErrTimeout)

	// ErrPoolShuttingDown indicates the pool is draining.
	ErrPoolShuttingDown = fmt.Errorf("pool: shutting down: %w", ErrUnavailable)

	// ErrPoolClosed indicates the pool has shut down.
	ErrPoolClosed = fmt.Errorf("pool: %w", ErrClosed)

	// ErrDoubleRelease indicates a lease was released more than once.
	ErrDoubleRelease = fmt.Errorf("pool: lease already released: %w", ErrInvalidState)

	// ErrForeignLease indicates a lease was released to a pool that did not issue it.
	ErrForeignLease = fmt.Errorf("pool: lease belongs to another pool: %w", ErrInvalidState)
)

// ConfigError wraps a configuration problem so it matches ErrConfiguration.
func ConfigError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfiguration, err)
}

// ConnectError wraps a factory failure so it matches ErrConnectFailed
// while keeping the driver's cause reachable through errors.As.
func ConnectError(driver string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrConnectFailed, driver, cause)
}

// AuthError wraps a credential rejection so it matches ErrAuthenticationFailed.
func AuthError(driver string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrAuthenticationFailed, driver, cause)
}

// Error is a structured error with a code and safe message.
// It implements the error interface and provides methods for
// error handling and response generation.
type Error struct {
	// Code is the error code for categorization
	Code int `json:"code"`
	// Message is a safe, user-facing error message
	Message string `json:"message"`
	// Err is the underlying error (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// SafeMessage returns a client-safe error message without internal details.
func (e *Error) SafeMessage() string {
	return e.Message
}

// New creates a new structured error with the given code and message.
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and safe message.
// The original error is preserved for debugging but not exposed to clients.
func Wrap(code int, message string, err error) *Error {
	if err != nil {
		log.WithField("code", code).WithError(err).Debug("wrapping error")
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FromSentinel creates a structured error whose code and safe message are
// derived from the sentinel the error matches. Driver causes, which may
// contain hosts or user names, stay in Err only.
func FromSentinel(err error) *Error {
	if err == nil {
		return nil
	}

	code, msg := classify(err)
	return &Error{
		Code:    code,
		Message: msg,
		Err:     err,
	}
}

// classify maps sentinel errors to codes and safe messages. Order matters:
// the more specific sentinel wraps the generic one.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration, "invalid pool configuration"
	case errors.Is(err, ErrDriverNotFound):
		return CodeDriverNotFound, "driver not found"
	case errors.Is(err, ErrCircuitOpen):
		return CodeCircuitOpen, "connect attempts suspended"
	case errors.Is(err, ErrAuthenticationFailed):
		return CodeAuthentication, "authentication failed"
	case errors.Is(err, ErrConnection):
		return CodeConnection, "connect failed"
	case errors.Is(err, ErrTimeout):
		return CodeTimeout, "acquire timed out"
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrClosed):
		return CodeUnavailable, "pool unavailable"
	case errors.Is(err, ErrInvalidState):
		return CodeState, "invalid lease state"
	default:
		return CodeInternal, "internal error"
	}
}

// IsRetryable reports whether a caller may retry the operation that
// produced err. Timeouts and plain connect failures are transient;
// credential rejections, configuration errors and terminal pool states
// are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthenticationFailed) {
		return false
	}
	return errors.Is(err, ErrAcquireTimeout) || errors.Is(err, ErrConnectFailed)
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnavailable returns true if the error indicates the pool is draining or closed.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrClosed)
}

// IsInvalidState returns true if the error indicates an invalid state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsClosed returns true if the error indicates a resource is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsConfiguration returns true if the error indicates invalid configuration.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// Join combines multiple errors into a single error.
// Returns nil if all errors are nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target,
// and if so, sets target to that error value and returns true.
func As(err error, target any) bool {
	return errors.As(err, target)
}
