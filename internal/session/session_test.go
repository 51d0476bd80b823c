// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/ManuGH/rumkit/internal/lifecycle"
	"github.com/ManuGH/rumkit/internal/monitor"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newManager(t *testing.T, now *time.Duration) (*Manager, *int) {
	t.Helper()
	bus := lifecycle.New(monitor.New(monitor.WithLogger(zerolog.New(io.Discard))))
	t.Cleanup(bus.Stop)

	renewals := 0
	lifecycle.Subscribe(bus, lifecycle.SessionRenewed, func(struct{}) { renewals++ })

	origin := time.Unix(0, 0)
	clock := timeutil.NewClockAt(origin, func() time.Time { return origin.Add(*now) })
	n := 0
	m := New(bus, clock, Options{
		ExpireDelay: time.Minute,
		MaxDuration: 10 * time.Minute,
		NewID: func() string {
			n++
			return fmt.Sprintf("s%d", n)
		},
	})
	return m, &renewals
}

func TestActivityKeepsSessionAlive(t *testing.T) {
	var now time.Duration
	m, renewals := newManager(t, &now)
	assert.Equal(t, "s1", m.ID())

	for i := 0; i < 5; i++ {
		now += 50 * time.Second
		m.Touch()
	}
	assert.Equal(t, "s1", m.ID())
	assert.Zero(t, *renewals)
}

func TestInactivityRenewsSession(t *testing.T) {
	var now time.Duration
	m, renewals := newManager(t, &now)

	now += 2 * time.Minute
	m.Touch()
	assert.Equal(t, "s2", m.ID())
	assert.Equal(t, 1, *renewals)
}

func TestMaxDurationRenewsSession(t *testing.T) {
	var now time.Duration
	m, renewals := newManager(t, &now)

	for i := 0; i < 21; i++ {
		now += 30 * time.Second
		m.Touch()
	}
	assert.Equal(t, "s2", m.ID())
	assert.Equal(t, 1, *renewals)
}

func TestDefaultsUseUUIDs(t *testing.T) {
	bus := lifecycle.New(nil)
	m := New(bus, timeutil.NewClock(), Options{})
	assert.Len(t, m.ID(), 36)
	assert.Equal(t, DefaultExpireDelay, m.opts.ExpireDelay)
}
