// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package collection holds what the per-domain collectors share.
package collection

import (
	"github.com/ManuGH/rumkit/internal/lifecycle"
	"github.com/ManuGH/rumkit/internal/metrics"
	"github.com/ManuGH/rumkit/internal/rumevent"
)

// Emit hands an output event to the sink side of the bus.
func Emit(bus *lifecycle.Bus, c rumevent.Collected) {
	metrics.IncRawEvent(string(c.RawEvent.EventType()))
	lifecycle.Notify(bus, lifecycle.RawEventCollected, c)
}
