// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate collects field-level configuration errors so that a single
// load reports every problem at once.
package validate

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Error is one rejected field.
type Error struct {
	Field   string
	Value   interface{}
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Errors is the error returned by Validator.Err.
type Errors []Error

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator accumulates errors. The zero value is ready to use.
type Validator struct {
	errs Errors
}

func New() *Validator {
	return &Validator{}
}

// Add records a failure for field.
func (v *Validator) Add(field string, value interface{}, format string, args ...interface{}) {
	v.errs = append(v.errs, Error{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

func (v *Validator) Valid() bool { return len(v.errs) == 0 }

// Err returns a snapshot of the accumulated errors, or nil.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return slices.Clone(v.errs)
}

// URL requires an absolute URL with a host and, when schemes is non-empty,
// one of those schemes.
func (v *Validator) URL(field, value string, schemes ...string) {
	if value == "" {
		v.Add(field, value, "URL cannot be empty")
		return
	}
	u, err := url.Parse(value)
	switch {
	case err != nil:
		v.Add(field, value, "invalid URL: %v", err)
	case u.Host == "":
		v.Add(field, value, "URL must have a host")
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		v.Add(field, value, "unsupported URL scheme %q (allowed: %v)", u.Scheme, schemes)
	}
}

// Origin requires scheme://host[:port] over http(s), with at most a "/" path.
func (v *Validator) Origin(field, value string) {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		v.Add(field, value, "origin must be an http(s) scheme and host")
		return
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		v.Add(field, value, "origin must not carry a path, query or fragment")
	}
}

// IntRange checks minVal <= value <= maxVal.
func (v *Validator) IntRange(field string, value, minVal, maxVal int) {
	if value < minVal || value > maxVal {
		v.Add(field, value, "value must be between %d and %d, got %d", minVal, maxVal, value)
	}
}

func (v *Validator) FloatRange(field string, value, minVal, maxVal float64) {
	if value < minVal || value > maxVal {
		v.Add(field, value, "value must be between %g and %g, got %g", minVal, maxVal, value)
	}
}

func (v *Validator) NotBlank(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, value, "value cannot be empty")
	}
}

func (v *Validator) OneOf(field, value string, allowed ...string) {
	if !slices.Contains(allowed, value) {
		v.Add(field, value, "value must be one of %v, got %q", allowed, value)
	}
}

func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.Add(field, value, "value must be positive, got %d", value)
	}
}

func (v *Validator) PositiveDuration(field string, value time.Duration) {
	if value <= 0 {
		v.Add(field, value, "duration must be positive, got %s", value)
	}
}

// LogLevels are the accepted logLevel values.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

func (v *Validator) LogLevel(field, value string) {
	if !slices.Contains(LogLevels, value) {
		v.Add(field, value, "unknown level %q (must be one of %s)", value, strings.Join(LogLevels, ", "))
	}
}
