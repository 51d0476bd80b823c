// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package longtask turns longtask performance entries into long_task events.
package longtask

import (
	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/collection"
	"github.com/ManuGH/rumkit/internal/lifecycle"
	"github.com/ManuGH/rumkit/internal/observable"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/timeutil"
)

// Start subscribes the collector to the bus.
func Start(bus *lifecycle.Bus, clock *timeutil.Clock) observable.Subscription {
	return lifecycle.Subscribe(bus, lifecycle.PerformanceEntryCollected, func(e browser.PerformanceEntry) {
		if e.EntryType != browser.EntryLongTask {
			return
		}
		collection.Emit(bus, process(clock, e))
	})
}

func process(clock *timeutil.Clock, e browser.PerformanceEntry) rumevent.Collected {
	return rumevent.Collected{
		RawEvent: rumevent.LongTaskEvent{
			Date: clock.TimeStamp(e.StartTime),
			Type: rumevent.TypeLongTask,
			LongTask: rumevent.LongTaskPayload{
				Duration: timeutil.ToServerDuration(e.Duration),
			},
		},
		StartTime: e.StartTime,
	}
}
