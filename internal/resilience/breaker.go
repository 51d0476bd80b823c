// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience guards calls to an external dependency with a circuit
// breaker. Calls are never retried.
package resilience

import (
	"errors"
	"sync"
	"time"

	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/metrics"
	"github.com/rs/zerolog"
)

// State is the breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker opens after threshold consecutive failures and lets a single probe
// through once resetTimeout has passed. A failed probe reopens it.
type Breaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	now          func() time.Time
	logger       zerolog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithNow replaces the time source.
func WithNow(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New returns a closed breaker. Non-positive arguments fall back to 3
// failures and 30 seconds.
func New(name string, threshold int, resetTimeout time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	b := &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
		logger:       xglog.WithComponent("resilience").With().Str("breaker", name).Logger(),
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	metrics.SetBreakerState(name, string(StateClosed))
	return b
}

// Execute runs fn unless the breaker is open and records its outcome.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		b.failure()
		return err
	}
	b.success()
	return nil
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

func (b *Breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch {
	case b.state == StateHalfOpen:
		metrics.IncBreakerTrip(b.name, "half_open_failure")
		b.transition(StateOpen)
	case b.state == StateClosed && b.failures >= b.threshold:
		metrics.IncBreakerTrip(b.name, "threshold_exceeded")
		b.transition(StateOpen)
	}
}

func (b *Breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.transition(StateClosed)
}

// transition must be called with mu held.
func (b *Breaker) transition(next State) {
	b.probing = false
	if b.state == next {
		return
	}
	b.logger.Info().
		Str(xglog.FieldEvent, "breaker.transition").
		Str("from", string(b.state)).
		Str("to", string(next)).
		Int("failures", b.failures).
		Msg("circuit breaker state changed")
	b.state = next
	if next == StateOpen {
		b.openedAt = b.now()
	}
	metrics.SetBreakerState(b.name, string(next))
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
