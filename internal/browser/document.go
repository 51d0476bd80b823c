// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"sync"

	"github.com/ManuGH/rumkit/internal/timeutil"
)

// VisibilityState mirrors document.visibilityState.
type VisibilityState string

const (
	Visible VisibilityState = "visible"
	Hidden  VisibilityState = "hidden"
)

// Document event types.
const (
	EventVisibilityChange = "visibilitychange"
	EventPageHide         = "pagehide"
	EventKeyDown          = "keydown"
	EventPointerDown      = "pointerdown"
	EventBeforeUnload     = "beforeunload"
)

// Event is a DOM event as seen by listeners.
type Event struct {
	Type      string
	TimeStamp timeutil.RelativeTime
}

type domListener struct {
	fn      func(Event)
	once    bool
	removed bool
}

// Document holds the page visibility state and dispatches DOM events.
type Document struct {
	mu         sync.Mutex
	visibility VisibilityState
	listeners  map[string][]*domListener
}

// NewDocument returns a document in the given visibility state.
func NewDocument(state VisibilityState) *Document {
	return &Document{visibility: state, listeners: make(map[string][]*domListener)}
}

// VisibilityState returns the current visibility state.
func (d *Document) VisibilityState() VisibilityState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visibility
}

// SetVisibilityState changes the visibility and dispatches visibilitychange.
func (d *Document) SetVisibilityState(state VisibilityState, at timeutil.RelativeTime) {
	d.mu.Lock()
	d.visibility = state
	d.mu.Unlock()
	d.Dispatch(Event{Type: EventVisibilityChange, TimeStamp: at})
}

// AddEventListener registers fn for eventType. When once is set the listener
// is removed after its first call. The returned function removes it.
func (d *Document) AddEventListener(eventType string, fn func(Event), once bool) (remove func()) {
	l := &domListener{fn: fn, once: once}
	d.mu.Lock()
	d.listeners[eventType] = append(d.listeners[eventType], l)
	d.mu.Unlock()
	return func() { d.remove(eventType, l) }
}

// AddEventListeners registers fn for several event types and returns a single
// function removing all of them.
func (d *Document) AddEventListeners(eventTypes []string, fn func(Event), once bool) (stop func()) {
	removers := make([]func(), 0, len(eventTypes))
	for _, t := range eventTypes {
		removers = append(removers, d.AddEventListener(t, fn, once))
	}
	return func() {
		for _, r := range removers {
			r()
		}
	}
}

// Dispatch delivers ev to the listeners registered for its type.
func (d *Document) Dispatch(ev Event) {
	d.mu.Lock()
	snapshot := append([]*domListener(nil), d.listeners[ev.Type]...)
	d.mu.Unlock()
	for _, l := range snapshot {
		d.mu.Lock()
		skip := l.removed
		if l.once && !skip {
			l.removed = true
		}
		d.mu.Unlock()
		if skip {
			continue
		}
		if l.once {
			d.remove(ev.Type, l)
		}
		l.fn(ev)
	}
}

func (d *Document) remove(eventType string, target *domListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	target.removed = true
	lst := d.listeners[eventType]
	out := make([]*domListener, 0, len(lst))
	for _, l := range lst {
		if l != target {
			out = append(out, l)
		}
	}
	d.listeners[eventType] = out
}
