// Package validation provides the field validators used when checking pool
// configuration. All validators follow a consistent pattern: they return nil
// on success and a *Result naming the offending field on failure.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Common validation errors. These are sentinel errors that can be checked with errors.Is().
var (
	// ErrRequired indicates a required field is missing or empty.
	ErrRequired = errors.New("field is required")

	// ErrTooLong indicates a string exceeds the maximum length.
	ErrTooLong = errors.New("value exceeds maximum length")

	// ErrInvalidFormat indicates a value doesn't match the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrOutOfRange indicates a numeric value is outside the allowed range.
	ErrOutOfRange = errors.New("value out of range")
)

// Constraints for pool fields.
const (
	// MaxPoolNameLength bounds pool names, which end up as metric labels.
	MaxPoolNameLength = 64

	// MaxPoolSize is the largest accepted maximum_pool_size.
	MaxPoolSize = 10000

	// MaxDuration is the largest accepted timeout or lifetime (1 year).
	MaxDuration = 365 * 24 * time.Hour
)

// Result represents a validation result with field context.
type Result struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (r *Result) Error() string {
	if r.Field != "" {
		return fmt.Sprintf("%s: %s", r.Field, r.Message)
	}
	return r.Message
}

// Unwrap returns the underlying error for errors.Is() support.
func (r *Result) Unwrap() error {
	return r.Err
}

// NewResult creates a validation result.
func NewResult(field, message string, err error) *Result {
	return &Result{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// Required validates that a string is non-empty.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewResult(field, "is required", ErrRequired)
	}
	return nil
}

// MaxLength validates that a string doesn't exceed the maximum length.
func MaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return NewResult(field, fmt.Sprintf("exceeds maximum length of %d characters", max), ErrTooLong)
	}
	return nil
}

// IntRange validates that an integer is within the given range (inclusive).
func IntRange(field string, value, min, max int) error {
	if value < min || value > max {
		return NewResult(field, fmt.Sprintf("must be between %d and %d", min, max), ErrOutOfRange)
	}
	return nil
}

// AtMost validates that value does not exceed the value of another field.
func AtMost(field string, value int, otherField string, other int) error {
	if value > other {
		return NewResult(field, fmt.Sprintf("must not exceed %s (%d)", otherField, other), ErrOutOfRange)
	}
	return nil
}

// NonNegativeDuration validates that a duration is >= 0 and within MaxDuration.
func NonNegativeDuration(field string, d time.Duration) error {
	if d < 0 {
		return NewResult(field, "duration cannot be negative", ErrOutOfRange)
	}
	if d > MaxDuration {
		return NewResult(field, fmt.Sprintf("must not exceed %v", MaxDuration), ErrOutOfRange)
	}
	return nil
}

// ConnectionURL validates that a connection URL is present and, when it
// uses URL syntax, that it parses. Key/value DSNs ("host=x user=y") and
// driver-native forms ("user@tcp(host)/db", "file:x.db") are accepted as is.
func ConnectionURL(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if strings.Contains(value, "://") {
		if _, err := url.Parse(value); err != nil {
			return NewResult(field, "is not a valid URL", ErrInvalidFormat)
		}
	}
	return nil
}

// All runs multiple validation functions and returns the first error.
func All(validators ...func() error) error {
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

// Errors collects multiple validation errors.
type Errors []error

// Add appends an error to the collection (nil errors are ignored).
func (e *Errors) Add(err error) {
	if err != nil {
		*e = append(*e, err)
	}
}

// HasErrors returns true if any errors were collected.
func (e Errors) HasErrors() bool {
	return len(e) > 0
}

// Error returns all errors as a single error message.
func (e Errors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("multiple validation errors: ")
	for i, err := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e Errors) Unwrap() []error {
	return e
}

// First returns the first error, or nil if none.
func (e Errors) First() error {
	if len(e) == 0 {
		return nil
	}
	return e[0]
}
