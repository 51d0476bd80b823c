// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package view

import (
	"net/url"
	"strings"

	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/lifecycle"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/metrics"
	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/observable"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures a Tracker.
type Options struct {
	// Referrer of the initial view.
	Referrer string
	// NewID generates view ids. Defaults to random UUIDs.
	NewID func() string
}

// Tracker keeps the current view and publishes a new version of it on every
// change. Its methods must be called from the event loop.
type Tracker struct {
	bus      *lifecycle.Bus
	clock    *timeutil.Clock
	platform *browser.Platform
	opts     Options
	logger   zerolog.Logger

	firstHidden *firstHidden
	initial     *view
	current     *view
	stopTimings func()
	subs        []observable.Subscription
	stopped     bool
}

// Track starts the initial view at time origin and begins following the page.
func Track(bus *lifecycle.Bus, clock *timeutil.Clock, p *browser.Platform, opts Options) *Tracker {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	t := &Tracker{
		bus:      bus,
		clock:    clock,
		platform: p,
		opts:     opts,
		logger:   xglog.WithComponent("view"),
	}
	t.firstHidden = trackFirstHidden(p.Document)

	t.initial = t.newView(model.LoadingInitialLoad, p.Location().String(), opts.Referrer, 0, "")
	t.current = t.initial

	// Page load timings only describe the initial view.
	t.stopTimings = trackTimings(bus, p.Document, t.firstHidden, func(partial model.Timings) {
		t.initial.updateTimings(partial)
	})

	t.subs = append(t.subs,
		lifecycle.Subscribe(bus, lifecycle.SessionRenewed, func(struct{}) {
			t.renew(model.LoadingRouteChange, t.current.name)
		}),
		lifecycle.Subscribe(bus, lifecycle.BeforeUnload, func(struct{}) {
			t.current.end()
		}),
	)
	return t
}

// Current returns a snapshot of the current view.
func (t *Tracker) Current() model.View {
	return t.current.snapshot()
}

// AddTiming records the time elapsed since the current view started under name.
func (t *Tracker) AddTiming(name string) {
	if t.stopped {
		return
	}
	t.current.addTiming(name, t.clock.RelativeNow())
}

// StartView ends the current view and starts a manually named one.
func (t *Tracker) StartView(name string) {
	if t.stopped {
		return
	}
	t.renew(model.LoadingRouteChange, name)
}

// ChangeLocation moves the page to rawURL. A change of path, or of a route
// style fragment ("#/path"), starts a new route_change view.
func (t *Tracker) ChangeLocation(rawURL string) error {
	before := t.platform.Location()
	if err := t.platform.SetLocation(rawURL); err != nil {
		return err
	}
	after := t.platform.Location()
	if t.stopped {
		return nil
	}
	if !differentLocation(before, after) {
		t.current.location = after.String()
		return nil
	}
	t.renew(model.LoadingRouteChange, "")
	return nil
}

// Refresh publishes a new version of the current view, keeping its
// time_spent current while nothing else changes.
func (t *Tracker) Refresh() {
	if t.stopped || t.current.ended {
		return
	}
	t.current.triggerUpdate()
}

// Stop ends the current view and stops tracking.
func (t *Tracker) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	t.stopTimings()
	t.firstHidden.stop()
	for _, s := range t.subs {
		s.Unsubscribe()
	}
	t.current.end()
}

func (t *Tracker) renew(loadingType model.LoadingType, name string) {
	referrer := t.current.location
	t.current.end()
	t.current = t.newView(loadingType, t.platform.Location().String(), referrer, t.clock.RelativeNow(), name)
}

func differentLocation(a, b *url.URL) bool {
	if a.Path != b.Path {
		return true
	}
	return isRouteFragment(b.Fragment) && fragmentPath(a.Fragment) != fragmentPath(b.Fragment)
}

// isRouteFragment tells client-side routes ("#/a", "#!/a") from in-page anchors.
func isRouteFragment(fragment string) bool {
	return strings.HasPrefix(fragment, "/") || strings.HasPrefix(fragment, "!")
}

func fragmentPath(fragment string) string {
	if i := strings.IndexByte(fragment, '?'); i >= 0 {
		return fragment[:i]
	}
	return fragment
}

// view is the mutable state of one logical page visit.
type view struct {
	t *Tracker

	id          string
	name        string
	location    string
	referrer    string
	startTime   timeutil.RelativeTime
	loadingType model.LoadingType

	documentVersion int
	timings         model.Timings
	customTimings   map[string]timeutil.Duration
	cls             *float64
	loadingTime     *timeutil.Duration
	counts          model.EventCounts
	ended           bool
	endTime         timeutil.RelativeTime

	subs []observable.Subscription
}

func (t *Tracker) newView(loadingType model.LoadingType, location, referrer string, start timeutil.RelativeTime, name string) *view {
	v := &view{
		t:             t,
		id:            t.opts.NewID(),
		name:          name,
		location:      location,
		referrer:      referrer,
		startTime:     start,
		loadingType:   loadingType,
		customTimings: make(map[string]timeutil.Duration),
	}
	lifecycle.Notify(t.bus, lifecycle.ViewCreated, model.ViewCreatedEvent{
		ID:        v.id,
		Name:      v.name,
		Location:  v.location,
		Referrer:  v.referrer,
		StartTime: v.startTime,
	})
	t.logger.Debug().
		Str(xglog.FieldEvent, "view.created").
		Str(xglog.FieldViewID, v.id).
		Str("loading_type", string(loadingType)).
		Msg("view created")

	v.subs = append(v.subs, lifecycle.Subscribe(t.bus, lifecycle.RawEventCollected, func(c rumevent.Collected) {
		if v.count(c.RawEvent.EventType()) {
			v.triggerUpdate()
		}
	}))

	if t.platform.Timeline.Supports(browser.EntryLayoutShift) {
		cls := 0.0
		v.cls = &cls
		v.subs = append(v.subs, lifecycle.Subscribe(t.bus, lifecycle.PerformanceEntryCollected, func(e browser.PerformanceEntry) {
			if e.EntryType != browser.EntryLayoutShift || e.HadRecentInput {
				return
			}
			*v.cls += e.Value
			v.triggerUpdate()
		}))
	}

	v.triggerUpdate()
	return v
}

// count updates the event counts and reports whether eventType is counted.
func (v *view) count(eventType rumevent.EventType) bool {
	switch eventType {
	case rumevent.TypeAction:
		v.counts.ActionCount++
	case rumevent.TypeError:
		v.counts.ErrorCount++
	case rumevent.TypeLongTask:
		v.counts.LongTaskCount++
	case rumevent.TypeResource:
		v.counts.ResourceCount++
	default:
		return false
	}
	return true
}

func (v *view) updateTimings(partial model.Timings) {
	v.timings.Merge(partial)
	if partial.LoadEvent != nil && v.loadingType == model.LoadingInitialLoad {
		lt := *partial.LoadEvent
		v.loadingTime = &lt
	}
	v.triggerUpdate()
}

func (v *view) addTiming(name string, at timeutil.RelativeTime) {
	v.customTimings[name] = timeutil.Elapsed(v.startTime, at)
	v.triggerUpdate()
}

// end stops counting events for the view and publishes its final version.
func (v *view) end() {
	if v.ended {
		return
	}
	v.ended = true
	v.endTime = v.t.clock.RelativeNow()
	for _, s := range v.subs {
		s.Unsubscribe()
	}
	v.subs = nil
	lifecycle.Notify(v.t.bus, lifecycle.ViewEnded, model.ViewEndedEvent{ID: v.id, EndTime: v.endTime})
	v.triggerUpdate()
}

func (v *view) triggerUpdate() {
	v.documentVersion++
	metrics.IncViewUpdate()
	lifecycle.Notify(v.t.bus, lifecycle.ViewUpdated, v.snapshot())
}

func (v *view) snapshot() model.View {
	end := v.endTime
	if !v.ended {
		end = v.t.clock.RelativeNow()
	}
	snap := model.View{
		ID:              v.id,
		Name:            v.name,
		Location:        v.location,
		Referrer:        v.referrer,
		StartTime:       v.startTime,
		DocumentVersion: v.documentVersion,
		LoadingType:     v.loadingType,
		EventCounts:     v.counts,
		IsActive:        !v.ended,
		Duration:        timeutil.Elapsed(v.startTime, end),
	}
	snap.Timings.Merge(v.timings)
	if v.cls != nil {
		c := *v.cls
		snap.CumulativeLayoutShift = &c
	}
	if v.loadingTime != nil {
		snap.LoadingTime = v.loadingTime.Ptr()
	}
	if len(v.customTimings) > 0 {
		snap.CustomTimings = make(map[string]timeutil.Duration, len(v.customTimings))
		for k, d := range v.customTimings {
			snap.CustomTimings[k] = d
		}
	}
	return snap
}
