// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package view

import (
	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/lifecycle"
	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/timeutil"
)

// trackTimings calls onTimings with the partial timings computed from each
// relevant performance entry.
func trackTimings(bus *lifecycle.Bus, doc *browser.Document, fh *firstHidden, onTimings func(model.Timings)) (stop func()) {
	stops := []func(){
		trackNavigationTimings(bus, onTimings),
		trackFirstContentfulPaint(bus, fh, func(t timeutil.RelativeTime) {
			onTimings(model.Timings{FirstContentfulPaint: timeutil.Duration(t).Ptr()})
		}),
		trackLargestContentfulPaint(bus, doc, fh, func(t timeutil.RelativeTime) {
			onTimings(model.Timings{LargestContentfulPaint: timeutil.Duration(t).Ptr()})
		}),
		trackFirstInputTimings(bus, fh, func(delay timeutil.Duration, at timeutil.RelativeTime) {
			onTimings(model.Timings{
				FirstInputDelay: delay.Ptr(),
				FirstInputTime:  timeutil.Duration(at).Ptr(),
			})
		}),
	}
	return func() {
		for _, s := range stops {
			s()
		}
	}
}

func trackNavigationTimings(bus *lifecycle.Bus, cb func(model.Timings)) func() {
	sub := lifecycle.Subscribe(bus, lifecycle.PerformanceEntryCollected, func(e browser.PerformanceEntry) {
		if e.EntryType != browser.EntryNavigation {
			return
		}
		cb(model.Timings{
			DomComplete:      timeutil.Duration(e.DomComplete).Ptr(),
			DomContentLoaded: timeutil.Duration(e.DomContentLoadedEventEnd).Ptr(),
			DomInteractive:   timeutil.Duration(e.DomInteractive).Ptr(),
			LoadEvent:        timeutil.Duration(e.LoadEventEnd).Ptr(),
		})
	})
	return sub.Unsubscribe
}

// Paints after the page was first hidden are not representative and dropped.
func trackFirstContentfulPaint(bus *lifecycle.Bus, fh *firstHidden, cb func(timeutil.RelativeTime)) func() {
	sub := lifecycle.Subscribe(bus, lifecycle.PerformanceEntryCollected, func(e browser.PerformanceEntry) {
		if e.EntryType == browser.EntryPaint &&
			e.Name == browser.FirstContentfulPaint &&
			e.StartTime < fh.TimeStamp() {
			cb(e.StartTime)
		}
	})
	return sub.Unsubscribe
}

// The first key or pointer interaction ends LCP tracking: later candidates
// are caused by the user, not by the page load.
func trackLargestContentfulPaint(bus *lifecycle.Bus, doc *browser.Document, fh *firstHidden, cb func(timeutil.RelativeTime)) func() {
	firstInteraction := timeutil.Infinite
	stopListening := doc.AddEventListeners(
		[]string{browser.EventKeyDown, browser.EventPointerDown},
		func(ev browser.Event) {
			if ev.TimeStamp < firstInteraction {
				firstInteraction = ev.TimeStamp
			}
		},
		true,
	)
	sub := lifecycle.Subscribe(bus, lifecycle.PerformanceEntryCollected, func(e browser.PerformanceEntry) {
		if e.EntryType == browser.EntryLargestContentfulPaint &&
			e.StartTime < firstInteraction &&
			e.StartTime < fh.TimeStamp() {
			cb(e.StartTime)
		}
	})
	return func() {
		stopListening()
		sub.Unsubscribe()
	}
}

func trackFirstInputTimings(bus *lifecycle.Bus, fh *firstHidden, cb func(timeutil.Duration, timeutil.RelativeTime)) func() {
	sub := lifecycle.Subscribe(bus, lifecycle.PerformanceEntryCollected, func(e browser.PerformanceEntry) {
		if e.EntryType != browser.EntryFirstInput || e.StartTime >= fh.TimeStamp() {
			return
		}
		// Some browsers report processingStart before startTime.
		if e.ProcessingStart < e.StartTime {
			return
		}
		cb(timeutil.Elapsed(e.StartTime, e.ProcessingStart), e.StartTime)
	})
	return sub.Unsubscribe
}
