// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package view tracks views and turns every view version into a view event.
package view

import (
	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/collection"
	"github.com/ManuGH/rumkit/internal/lifecycle"
	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/timeutil"
)

// Start maps view updates to view events and starts the tracker.
func Start(bus *lifecycle.Bus, clock *timeutil.Clock, p *browser.Platform, opts Options) *Tracker {
	lifecycle.Subscribe(bus, lifecycle.ViewUpdated, func(v model.View) {
		collection.Emit(bus, processViewUpdate(clock, v))
	})
	return Track(bus, clock, p, opts)
}

func processViewUpdate(clock *timeutil.Clock, v model.View) rumevent.Collected {
	ev := rumevent.ViewEvent{
		DD:   rumevent.ViewInternal{DocumentVersion: v.DocumentVersion},
		Date: clock.TimeStamp(v.StartTime),
		Type: rumevent.TypeView,
		View: rumevent.ViewPayload{
			ID:                     v.ID,
			URL:                    v.Location,
			Referrer:               v.Referrer,
			Action:                 rumevent.Count{Count: v.EventCounts.ActionCount},
			CumulativeLayoutShift:  v.CumulativeLayoutShift,
			DomComplete:            timeutil.OptionalServerDuration(v.Timings.DomComplete),
			DomContentLoaded:       timeutil.OptionalServerDuration(v.Timings.DomContentLoaded),
			DomInteractive:         timeutil.OptionalServerDuration(v.Timings.DomInteractive),
			Error:                  rumevent.Count{Count: v.EventCounts.ErrorCount},
			FirstContentfulPaint:   timeutil.OptionalServerDuration(v.Timings.FirstContentfulPaint),
			FirstInputDelay:        timeutil.OptionalServerDuration(v.Timings.FirstInputDelay),
			FirstInputTime:         timeutil.OptionalServerDuration(v.Timings.FirstInputTime),
			IsActive:               v.IsActive,
			Name:                   v.Name,
			LargestContentfulPaint: timeutil.OptionalServerDuration(v.Timings.LargestContentfulPaint),
			LoadEvent:              timeutil.OptionalServerDuration(v.Timings.LoadEvent),
			LoadingTime:            timeutil.OptionalServerDuration(v.LoadingTime),
			LoadingType:            string(v.LoadingType),
			LongTask:               rumevent.Count{Count: v.EventCounts.LongTaskCount},
			Resource:               rumevent.Count{Count: v.EventCounts.ResourceCount},
			TimeSpent:              timeutil.ToServerDuration(v.Duration),
		},
	}
	if len(v.CustomTimings) > 0 {
		ev.View.CustomTimings = make(map[string]timeutil.ServerDuration, len(v.CustomTimings))
		for name, d := range v.CustomTimings {
			ev.View.CustomTimings[name] = timeutil.ToServerDuration(d)
		}
	}
	return rumevent.Collected{RawEvent: ev, StartTime: v.StartTime}
}
