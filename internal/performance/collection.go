// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package performance forwards performance timeline entries to the lifecycle bus.
package performance

import (
	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/lifecycle"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/monitor"
)

// collectedTypes are the entry types the SDK consumes.
var collectedTypes = []browser.EntryType{
	browser.EntryResource,
	browser.EntryNavigation,
	browser.EntryPaint,
	browser.EntryLongTask,
	browser.EntryLargestContentfulPaint,
	browser.EntryFirstInput,
	browser.EntryLayoutShift,
}

// IntakeMatcher reports whether a URL belongs to the SDK's own intake.
type IntakeMatcher func(url string) bool

// Start replays the entries already buffered on the timeline, then forwards
// new ones. Resource entries for the intake are dropped so the SDK never
// reports its own traffic. The returned func stops observing.
func Start(bus *lifecycle.Bus, timeline *browser.PerformanceTimeline, mon *monitor.Monitor, isIntake IntakeMatcher) (stop func()) {
	logger := xglog.WithComponent("performance")

	handle := monitor.Wrap(mon, "performance.entry", func(e browser.PerformanceEntry) {
		if e.EntryType == browser.EntryResource && isIntake != nil && isIntake(e.Name) {
			return
		}
		lifecycle.Notify(bus, lifecycle.PerformanceEntryCollected, e)
	})

	wanted := make([]browser.EntryType, 0, len(collectedTypes))
	for _, t := range collectedTypes {
		if timeline.Supports(t) {
			wanted = append(wanted, t)
		}
	}

	buffered := timeline.Entries()
	for _, e := range buffered {
		handle(e)
	}
	logger.Debug().
		Str(xglog.FieldEvent, "performance.started").
		Int("replayed", len(buffered)).
		Int("types", len(wanted)).
		Msg("performance collection started")

	return timeline.Observe(wanted, handle)
}
