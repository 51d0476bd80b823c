// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package view

import (
	"fmt"
	"testing"
	"time"

	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/lifecycle"
	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackerHarness struct {
	bus      *lifecycle.Bus
	platform *browser.Platform
	now      time.Duration
	clock    *timeutil.Clock
	tracker  *Tracker

	updates []model.View
	created []model.ViewCreatedEvent
	ended   []model.ViewEndedEvent
}

func newTrackerHarness(t *testing.T, timeline *browser.PerformanceTimeline) *trackerHarness {
	t.Helper()
	h := &trackerHarness{bus: newBus(t)}
	opts := []browser.PlatformOption{}
	if timeline != nil {
		opts = append(opts, browser.WithTimeline(timeline))
	}
	p, err := browser.NewPlatform("https://app.example.com/foo", nil, opts...)
	require.NoError(t, err)
	h.platform = p

	origin := time.UnixMilli(1_600_000_000_000)
	h.clock = timeutil.NewClockAt(origin, func() time.Time { return origin.Add(h.now) })

	lifecycle.Subscribe(h.bus, lifecycle.ViewUpdated, func(v model.View) { h.updates = append(h.updates, v) })
	lifecycle.Subscribe(h.bus, lifecycle.ViewCreated, func(e model.ViewCreatedEvent) { h.created = append(h.created, e) })
	lifecycle.Subscribe(h.bus, lifecycle.ViewEnded, func(e model.ViewEndedEvent) { h.ended = append(h.ended, e) })

	ids := 0
	h.tracker = Track(h.bus, h.clock, p, Options{
		Referrer: "https://search.example.com/",
		NewID: func() string {
			ids++
			return fmt.Sprintf("view-%d", ids)
		},
	})
	t.Cleanup(h.tracker.Stop)
	return h
}

func (h *trackerHarness) last() model.View {
	return h.updates[len(h.updates)-1]
}

func (h *trackerHarness) advance(ms int) {
	h.now += time.Duration(ms) * time.Millisecond
}

func TestInitialView(t *testing.T) {
	h := newTrackerHarness(t, nil)

	require.Len(t, h.created, 1)
	assert.Equal(t, model.ViewCreatedEvent{
		ID:       "view-1",
		Location: "https://app.example.com/foo",
		Referrer: "https://search.example.com/",
	}, h.created[0])

	require.Len(t, h.updates, 1)
	v := h.last()
	assert.Equal(t, "view-1", v.ID)
	assert.Equal(t, 1, v.DocumentVersion)
	assert.Equal(t, model.LoadingInitialLoad, v.LoadingType)
	assert.EqualValues(t, 0, v.StartTime)
	assert.True(t, v.IsActive)
	assert.Nil(t, v.LoadingTime)
	require.NotNil(t, v.CumulativeLayoutShift)
	assert.Zero(t, *v.CumulativeLayoutShift)
}

func TestTimingsUpdateInitialViewAndLoadingTime(t *testing.T) {
	h := newTrackerHarness(t, nil)

	notifyEntry(h.bus, fakeNavigationEntry)
	notifyEntry(h.bus, fakePaintEntry)

	v := h.last()
	assert.Equal(t, 3, v.DocumentVersion)
	assert.Equal(t, d(567), v.Timings.LoadEvent)
	assert.Equal(t, d(123), v.Timings.FirstContentfulPaint)
	assert.Equal(t, d(456), v.Timings.DomComplete, "earlier timings are kept")
	assert.Equal(t, d(567), v.LoadingTime)
}

func TestDocumentVersionIncrementsOnEveryUpdate(t *testing.T) {
	h := newTrackerHarness(t, nil)
	h.tracker.Refresh()
	h.tracker.Refresh()

	for i, v := range h.updates {
		assert.Equal(t, i+1, v.DocumentVersion)
	}
}

func TestEventCountsOnlyWhileActive(t *testing.T) {
	h := newTrackerHarness(t, nil)
	emit := func(ev rumevent.RawEvent) {
		lifecycle.Notify(h.bus, lifecycle.RawEventCollected, rumevent.Collected{RawEvent: ev})
	}

	emit(rumevent.ErrorEvent{})
	emit(rumevent.LongTaskEvent{})
	emit(rumevent.ResourceEvent{})
	emit(rumevent.ResourceEvent{})
	emit(rumevent.ViewEvent{})

	v := h.last()
	assert.Equal(t, model.EventCounts{ErrorCount: 1, LongTaskCount: 1, ResourceCount: 2}, v.EventCounts)
	assert.Equal(t, 5, v.DocumentVersion, "view events are not counted")

	lifecycle.Notify(h.bus, lifecycle.BeforeUnload, struct{}{})
	ended := h.last()
	assert.False(t, ended.IsActive)

	emit(rumevent.ErrorEvent{})
	assert.Equal(t, ended, h.last())
}

func TestRouteChangeStartsNewView(t *testing.T) {
	h := newTrackerHarness(t, nil)
	h.advance(100)

	require.NoError(t, h.tracker.ChangeLocation("/bar"))

	require.Len(t, h.ended, 1)
	assert.Equal(t, model.ViewEndedEvent{ID: "view-1", EndTime: 100}, h.ended[0])

	require.Len(t, h.created, 2)
	assert.Equal(t, "https://app.example.com/bar", h.created[1].Location)
	assert.Equal(t, "https://app.example.com/foo", h.created[1].Referrer)

	cur := h.tracker.Current()
	assert.Equal(t, "view-2", cur.ID)
	assert.Equal(t, model.LoadingRouteChange, cur.LoadingType)
	assert.EqualValues(t, 100, cur.StartTime)

	var endedVersion model.View
	for _, v := range h.updates {
		if v.ID == "view-1" {
			endedVersion = v
		}
	}
	assert.False(t, endedVersion.IsActive)
	assert.EqualValues(t, 100, endedVersion.Duration)
}

func TestFragmentChanges(t *testing.T) {
	h := newTrackerHarness(t, nil)

	require.NoError(t, h.tracker.ChangeLocation("#section-2"))
	assert.Len(t, h.created, 1, "anchors stay in the view")
	assert.Equal(t, "https://app.example.com/foo#section-2", h.tracker.current.location)

	require.NoError(t, h.tracker.ChangeLocation("#/orders?page=2"))
	assert.Len(t, h.created, 2)

	require.NoError(t, h.tracker.ChangeLocation("#/orders?page=3"))
	assert.Len(t, h.created, 2, "route query changes stay in the view")
}

func TestTimingsStayOnInitialView(t *testing.T) {
	h := newTrackerHarness(t, nil)
	require.NoError(t, h.tracker.ChangeLocation("/bar"))

	notifyEntry(h.bus, fakePaintEntry)

	v := h.last()
	assert.Equal(t, "view-1", v.ID)
	assert.Equal(t, d(123), v.Timings.FirstContentfulPaint)
	assert.Nil(t, h.tracker.Current().Timings.FirstContentfulPaint)
}

func TestStartViewAndCustomTimings(t *testing.T) {
	h := newTrackerHarness(t, nil)
	h.advance(50)
	h.tracker.StartView("checkout")
	h.advance(20)
	h.tracker.AddTiming("hero_image")

	v := h.last()
	assert.Equal(t, "checkout", v.Name)
	assert.EqualValues(t, 50, v.StartTime)
	assert.Equal(t, map[string]timeutil.Duration{"hero_image": 20}, v.CustomTimings)
	assert.EqualValues(t, 20, v.Duration)
}

func TestSessionRenewalRestartsView(t *testing.T) {
	h := newTrackerHarness(t, nil)
	h.tracker.StartView("home")
	lifecycle.Notify(h.bus, lifecycle.SessionRenewed, struct{}{})

	assert.Len(t, h.created, 3)
	cur := h.tracker.Current()
	assert.Equal(t, "view-3", cur.ID)
	assert.Equal(t, "home", cur.Name)
	assert.True(t, cur.IsActive)
}

func TestCumulativeLayoutShift(t *testing.T) {
	h := newTrackerHarness(t, nil)
	notifyEntry(h.bus, browser.PerformanceEntry{EntryType: browser.EntryLayoutShift, Value: 0.1})
	notifyEntry(h.bus, browser.PerformanceEntry{EntryType: browser.EntryLayoutShift, Value: 0.5, HadRecentInput: true})
	notifyEntry(h.bus, browser.PerformanceEntry{EntryType: browser.EntryLayoutShift, Value: 0.2})

	require.NotNil(t, h.last().CumulativeLayoutShift)
	assert.InDelta(t, 0.3, *h.last().CumulativeLayoutShift, 1e-9)
}

func TestLayoutShiftUnsupported(t *testing.T) {
	h := newTrackerHarness(t, browser.NewPerformanceTimeline(browser.EntryNavigation, browser.EntryPaint))
	notifyEntry(h.bus, browser.PerformanceEntry{EntryType: browser.EntryLayoutShift, Value: 0.1})

	assert.Nil(t, h.last().CumulativeLayoutShift)
	assert.Len(t, h.updates, 1)
}

func TestStopEndsCurrentView(t *testing.T) {
	h := newTrackerHarness(t, nil)
	h.tracker.Stop()
	h.tracker.Stop()

	require.Len(t, h.ended, 1)
	assert.False(t, h.last().IsActive)

	n := len(h.updates)
	h.tracker.Refresh()
	notifyEntry(h.bus, fakePaintEntry)
	assert.Len(t, h.updates, n)
}

func TestRefreshAfterBeforeUnloadIsNoop(t *testing.T) {
	h := newTrackerHarness(t, nil)
	lifecycle.Notify(h.bus, lifecycle.BeforeUnload, struct{}{})
	require.False(t, h.last().IsActive)

	n := len(h.updates)
	h.advance(1000)
	h.tracker.Refresh()
	h.tracker.Refresh()
	assert.Len(t, h.updates, n)
}
