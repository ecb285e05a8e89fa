// SPDX-License-Identifier: MIT

// Package validate collects configuration problems so that a bad config file
// is reported in one pass instead of one field per restart.
package validate

import (
	"fmt"
	"net"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// LogLevels are the zerolog level names accepted in configuration.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

// Error is a single invalid field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError is every problem found by one Validator.
type ValidationError struct {
	errs []Error
}

// Errors returns the individual field errors.
func (e ValidationError) Errors() []Error { return e.errs }

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e.errs))
	for _, fe := range e.errs {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, "; ")
}

// Validator accumulates field errors.
type Validator struct {
	errs []Error
}

func New() *Validator { return &Validator{} }

// AddError records a failed check for field.
func (v *Validator) AddError(field, message string, value any) {
	v.errs = append(v.errs, Error{Field: field, Value: value, Message: message})
}

// check records message when ok is false.
func (v *Validator) check(ok bool, field string, value any, format string, args ...any) {
	if !ok {
		v.AddError(field, fmt.Sprintf(format, args...), value)
	}
}

func (v *Validator) IsValid() bool   { return len(v.errs) == 0 }
func (v *Validator) Errors() []Error { return v.errs }

// Err returns nil when every check passed, otherwise a ValidationError.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errs: slices.Clone(v.errs)}
}

func (v *Validator) NotEmpty(field, value string) {
	v.check(strings.TrimSpace(value) != "", field, value, "value cannot be empty")
}

// MinLen requires at least n bytes. Only the length is kept as the value so
// that secrets never reach an error message.
func (v *Validator) MinLen(field, value string, n int) {
	v.check(len(value) >= n, field, len(value), "must be at least %d characters", n)
}

func (v *Validator) OneOf(field, value string, allowed []string) {
	v.check(slices.Contains(allowed, value), field, value, "value must be one of %v, got %q", allowed, value)
}

func (v *Validator) Positive(field string, value int64) {
	v.check(value > 0, field, value, "value must be positive, got %d", value)
}

func (v *Validator) NonNegative(field string, value int64) {
	v.check(value >= 0, field, value, "value cannot be negative, got %d", value)
}

// Fraction requires a value in [0, 1], such as a sampling ratio.
func (v *Validator) Fraction(field string, value float64) {
	v.check(value >= 0 && value <= 1, field, value, "value must be between 0 and 1, got %g", value)
}

// ListenAddr accepts host:port with an optional host and a numeric port.
func (v *Validator) ListenAddr(field, addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid listen address: %v", err), addr)
		return
	}
	p, err := strconv.Atoi(port)
	v.check(err == nil && p >= 0 && p <= 65535, field, addr, "port must be between 0 and 65535, got %q", port)
}

// Directory rejects empty paths and paths with ".." segments. The filesystem
// is not consulted.
func (v *Validator) Directory(field, path string) {
	if strings.TrimSpace(path) == "" {
		v.AddError(field, "directory path cannot be empty", path)
		return
	}
	segments := strings.Split(filepath.ToSlash(path), "/")
	v.check(!slices.Contains(segments, ".."), field, path, "path contains traversal sequences (..)")
}
