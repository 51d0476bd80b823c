// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session provides the session id attached to collected events and
// renews it after inactivity or once the session is too old.
package session

import (
	"time"

	"github.com/ManuGH/rumkit/internal/lifecycle"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultExpireDelay = 15 * time.Minute
	DefaultMaxDuration = 4 * time.Hour
)

// Provider exposes the current session.
type Provider interface {
	ID() string
}

// Options configures a Manager. Zero values use the defaults.
type Options struct {
	ExpireDelay time.Duration
	MaxDuration time.Duration
	NewID       func() string
}

// Manager owns the session of one SDK instance.
type Manager struct {
	bus    *lifecycle.Bus
	clock  *timeutil.Clock
	opts   Options
	logger zerolog.Logger

	id           string
	created      timeutil.RelativeTime
	lastActivity timeutil.RelativeTime
}

var _ Provider = (*Manager)(nil)

// New starts a session.
func New(bus *lifecycle.Bus, clock *timeutil.Clock, opts Options) *Manager {
	if opts.ExpireDelay <= 0 {
		opts.ExpireDelay = DefaultExpireDelay
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	m := &Manager{
		bus:    bus,
		clock:  clock,
		opts:   opts,
		logger: xglog.WithComponent("session"),
	}
	m.start()
	return m
}

func (m *Manager) start() {
	now := m.clock.RelativeNow()
	m.id = m.opts.NewID()
	m.created = now
	m.lastActivity = now
}

// ID returns the current session id.
func (m *Manager) ID() string {
	return m.id
}

// Touch records user activity. An expired session is renewed first.
func (m *Manager) Touch() {
	now := m.clock.RelativeNow()
	if m.expired(now) {
		m.Renew()
		return
	}
	m.lastActivity = now
}

func (m *Manager) expired(now timeutil.RelativeTime) bool {
	idle := timeutil.Elapsed(m.lastActivity, now).Std()
	age := timeutil.Elapsed(m.created, now).Std()
	return idle >= m.opts.ExpireDelay || age >= m.opts.MaxDuration
}

// Renew starts a new session and notifies SessionRenewed.
func (m *Manager) Renew() {
	previous := m.id
	m.start()
	m.logger.Info().
		Str(xglog.FieldEvent, "session.renewed").
		Str("previous_session_id", previous).
		Str(xglog.FieldSessionID, m.id).
		Msg("session renewed")
	lifecycle.Notify(m.bus, lifecycle.SessionRenewed, struct{}{})
}
