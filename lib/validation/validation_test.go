package validation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRequired(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		wantErr bool
	}{
		{"valid string", "url", "postgres://localhost/app", false},
		{"empty string", "url", "", true},
		{"whitespace only", "url", "   ", true},
		{"tab only", "url", "\t", true},
		{"valid with spaces", "url", " x ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Required(tt.field, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Required() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrRequired) {
				t.Errorf("Required() error should wrap ErrRequired")
			}
		})
	}
}

func TestMaxLength(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		max     int
		wantErr bool
	}{
		{"under max", "orders", 10, false},
		{"at max", "orders", 6, false},
		{"over max", "orders-primary", 6, true},
		{"unicode chars", "日本語", 5, false},
		{"unicode over", "日本語テスト", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MaxLength("name", tt.value, tt.max)
			if (err != nil) != tt.wantErr {
				t.Errorf("MaxLength() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrTooLong) {
				t.Errorf("MaxLength() error should wrap ErrTooLong")
			}
		})
	}
}

func TestIntRange(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"at min", 1, false},
		{"in range", 10, false},
		{"at max", MaxPoolSize, false},
		{"below min", 0, true},
		{"negative", -3, true},
		{"above max", MaxPoolSize + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := IntRange("maximum_pool_size", tt.value, 1, MaxPoolSize)
			if (err != nil) != tt.wantErr {
				t.Errorf("IntRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrOutOfRange) {
				t.Errorf("IntRange() error should wrap ErrOutOfRange")
			}
		})
	}
}

func TestAtMost(t *testing.T) {
	if err := AtMost("minimum_idle", 5, "maximum_pool_size", 5); err != nil {
		t.Errorf("equal values should pass, got %v", err)
	}

	err := AtMost("minimum_idle", 6, "maximum_pool_size", 5)
	if err == nil {
		t.Fatal("expected error when value exceeds other field")
	}
	if !strings.Contains(err.Error(), "maximum_pool_size") {
		t.Errorf("error should name the other field, got %q", err.Error())
	}
}

func TestNonNegativeDuration(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Duration
		wantErr bool
	}{
		{"zero", 0, false},
		{"positive", 30 * time.Second, false},
		{"max", MaxDuration, false},
		{"negative", -time.Millisecond, true},
		{"too large", MaxDuration + time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NonNegativeDuration("idle_timeout_ms", tt.d)
			if (err != nil) != tt.wantErr {
				t.Errorf("NonNegativeDuration() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConnectionURL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr error
	}{
		{"postgres url", "postgres://app@localhost:5432/app", nil},
		{"key value dsn", "host=localhost user=app dbname=app", nil},
		{"mysql native", "app:pw@tcp(127.0.0.1:3306)/app", nil},
		{"sqlite memory", ":memory:", nil},
		{"empty", "", ErrRequired},
		{"broken url", "postgres://[::1", ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ConnectionURL("url", tt.value)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResultError(t *testing.T) {
	r := NewResult("url", "is required", ErrRequired)
	if r.Error() != "url: is required" {
		t.Errorf("unexpected message %q", r.Error())
	}

	noField := NewResult("", "bad", ErrInvalidFormat)
	if noField.Error() != "bad" {
		t.Errorf("unexpected message %q", noField.Error())
	}
}

func TestAll(t *testing.T) {
	err := All(
		func() error { return Required("driver_class_name", "postgres") },
		func() error { return IntRange("minimum_idle", -1, 0, 10) },
		func() error { return Required("url", "") },
	)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("All should return the first failure, got %v", err)
	}

	if err := All(); err != nil {
		t.Errorf("All() with no validators should pass, got %v", err)
	}
}

func TestErrors(t *testing.T) {
	var errs Errors
	errs.Add(nil)
	if errs.HasErrors() {
		t.Error("nil should not be collected")
	}

	errs.Add(Required("url", ""))
	errs.Add(IntRange("maximum_pool_size", 0, 1, 10))

	if !errs.HasErrors() {
		t.Fatal("expected collected errors")
	}
	if !strings.HasPrefix(errs.Error(), "multiple validation errors: ") {
		t.Errorf("unexpected message %q", errs.Error())
	}
	if !errors.Is(errs, ErrOutOfRange) {
		t.Error("Errors should unwrap to its members")
	}
	if !errors.Is(errs.First(), ErrRequired) {
		t.Error("First should return the first collected error")
	}
}
