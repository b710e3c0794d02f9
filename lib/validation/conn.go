package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// DefaultValidationTimeout bounds a single liveness check.
const DefaultValidationTimeout = 5 * time.Second

// Checkable is the subset of a pooled connection the Validator needs.
type Checkable interface {
	// Ping runs the driver's native health probe.
	Ping(ctx context.Context) error
	// Exec runs a statement and discards its result.
	Exec(ctx context.Context, query string) error
	// IsClosed reports whether the connection is known to be unusable.
	IsClosed() bool
}

// Validator checks that a connection is still alive. It runs Query when one
// is configured and falls back to the driver's native ping otherwise.
type Validator struct {
	// Query is the test statement, e.g. "SELECT 1". Empty means native ping.
	Query string
	// Timeout bounds each check. Zero means DefaultValidationTimeout.
	Timeout time.Duration
}

// Validate reports whether conn answered the check within the timeout.
// Any error, timeout or driver panic yields false; it never propagates.
// The timeout is enforced even against drivers that ignore the context.
func (v Validator) Validate(ctx context.Context, conn Checkable) bool {
	if conn == nil || conn.IsClosed() {
		return false
	}

	timeout := v.Timeout
	if timeout <= 0 {
		timeout = DefaultValidationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("validation panicked: %v", r)
			}
		}()
		if v.Query != "" {
			result <- conn.Exec(ctx, v.Query)
			return
		}
		result <- conn.Ping(ctx)
	}()

	select {
	case err := <-result:
		if err != nil {
			log.WithError(err).WithField("query", v.Query).Debug("connection failed validation")
			return false
		}
		return true
	case <-ctx.Done():
		log.WithField("timeout", timeout).Debug("connection validation timed out")
		return false
	}
}
