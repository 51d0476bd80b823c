// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package monitor runs SDK callbacks so that a fault inside one of them is
// recovered, reported on the internal diagnostics channel and never reaches
// host application code.
package monitor

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultMaxMessagesPerPage caps the fault reports one SDK instance sends.
const DefaultMaxMessagesPerPage = 15

// Report describes one recovered internal fault.
type Report struct {
	Component string
	Message   string
	Stack     string
	Time      time.Time
}

// Reporter receives fault reports, typically to forward them to an internal
// monitoring intake.
type Reporter interface {
	Report(Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Report)

func (f ReporterFunc) Report(r Report) { f(r) }

// Monitor recovers panics raised by SDK callbacks.
// The zero value is not usable; a nil *Monitor still recovers but only logs.
type Monitor struct {
	logger zerolog.Logger

	mu        sync.Mutex
	reporters []Reporter
	limiter   *rate.Limiter
	budget    int
	sent      int
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithReporter adds a reporter that receives every report within budget.
func WithReporter(r Reporter) Option {
	return func(m *Monitor) { m.reporters = append(m.reporters, r) }
}

// WithMaxMessagesPerPage sets the total number of reports forwarded to reporters.
// Non-positive values keep the default.
func WithMaxMessagesPerPage(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.budget = n
		}
	}
}

// WithRateLimit bounds how fast reports are forwarded, on top of the budget.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(m *Monitor) { m.limiter = rate.NewLimiter(limit, burst) }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// New creates a Monitor.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		logger:  xglog.WithComponent("monitor"),
		budget:  DefaultMaxMessagesPerPage,
		limiter: rate.NewLimiter(rate.Every(time.Second), DefaultMaxMessagesPerPage),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Call runs fn, recovering any panic. It reports whether fn completed normally.
func (m *Monitor) Call(component string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.fault(component, r, string(debug.Stack()))
			ok = false
		}
	}()
	fn()
	return true
}

// Func wraps fn so every invocation is monitored.
func (m *Monitor) Func(component string, fn func()) func() {
	return func() { m.Call(component, fn) }
}

// Wrap wraps a single-argument callback so every invocation is monitored.
func Wrap[T any](m *Monitor, component string, fn func(T)) func(T) {
	return func(v T) {
		m.Call(component, func() { fn(v) })
	}
}

// ReportError records a non-panic internal failure.
func (m *Monitor) ReportError(component string, err error) {
	if err == nil {
		return
	}
	m.fault(component, err, "")
}

func (m *Monitor) fault(component string, cause interface{}, stack string) {
	metrics.IncInternalFault(component)

	msg := fmt.Sprint(cause)
	if err, ok := cause.(error); ok {
		msg = err.Error()
	}

	logger := xglog.WithComponent("monitor")
	if m != nil {
		logger = m.logger
	}
	logger.Error().
		Str(xglog.FieldEvent, "monitor.fault").
		Str("fault_component", component).
		Str(xglog.FieldPanic, msg).
		Str(xglog.FieldStack, stack).
		Msg("internal fault recovered")

	if m == nil {
		return
	}
	report := Report{Component: component, Message: msg, Stack: stack, Time: time.Now()}
	if !m.admit() {
		metrics.IncMonitorReportDropped()
		return
	}

	m.mu.Lock()
	reporters := append([]Reporter(nil), m.reporters...)
	m.mu.Unlock()
	for _, r := range reporters {
		// A faulty reporter must not recurse into the monitor.
		func() {
			defer func() { _ = recover() }()
			r.Report(report)
		}()
	}
}

func (m *Monitor) admit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent >= m.budget {
		return false
	}
	if m.limiter != nil && !m.limiter.Allow() {
		return false
	}
	m.sent++
	return true
}

// Sent returns how many reports were forwarded to reporters.
func (m *Monitor) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}
