// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"sync"

	"github.com/ManuGH/rumkit/internal/observable"
	"github.com/ManuGH/rumkit/internal/timeutil"
)

// EntryType is a performance timeline entry type.
type EntryType string

const (
	EntryNavigation             EntryType = "navigation"
	EntryPaint                  EntryType = "paint"
	EntryLargestContentfulPaint EntryType = "largest-contentful-paint"
	EntryFirstInput             EntryType = "first-input"
	EntryLongTask               EntryType = "longtask"
	EntryResource               EntryType = "resource"
	EntryLayoutShift            EntryType = "layout-shift"
)

// FirstContentfulPaint is the name of the paint entry for the first contentful paint.
const FirstContentfulPaint = "first-contentful-paint"

// PerformanceEntry is a read-only performance timeline entry. Only the fields
// relevant to its EntryType are set.
type PerformanceEntry struct {
	EntryType EntryType
	Name      string
	StartTime timeutil.RelativeTime
	Duration  timeutil.Duration

	// first-input
	ProcessingStart timeutil.RelativeTime

	// navigation
	DomComplete              timeutil.RelativeTime
	DomContentLoadedEventEnd timeutil.RelativeTime
	DomInteractive           timeutil.RelativeTime
	LoadEventEnd             timeutil.RelativeTime

	// layout-shift
	Value          float64
	HadRecentInput bool

	// resource
	InitiatorType string
}

// PerformanceTimeline buffers entries and notifies live observers.
type PerformanceTimeline struct {
	mu        sync.Mutex
	entries   []PerformanceEntry
	supported map[EntryType]bool
	observers *observable.Observable[PerformanceEntry]
}

// NewPerformanceTimeline returns a timeline supporting the given entry types,
// or every known type when none is given.
func NewPerformanceTimeline(supported ...EntryType) *PerformanceTimeline {
	if len(supported) == 0 {
		supported = []EntryType{
			EntryNavigation, EntryPaint, EntryLargestContentfulPaint, EntryFirstInput,
			EntryLongTask, EntryResource, EntryLayoutShift,
		}
	}
	t := &PerformanceTimeline{
		supported: make(map[EntryType]bool, len(supported)),
		observers: observable.New[PerformanceEntry](),
	}
	for _, s := range supported {
		t.supported[s] = true
	}
	return t
}

// Supports reports whether entries of type are produced by this timeline.
func (t *PerformanceTimeline) Supports(entryType EntryType) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.supported[entryType]
}

// Record appends e to the buffer and delivers it to observers. Entries of an
// unsupported type are ignored.
func (t *PerformanceTimeline) Record(e PerformanceEntry) {
	t.mu.Lock()
	if !t.supported[e.EntryType] {
		t.mu.Unlock()
		return
	}
	t.entries = append(t.entries, e)
	t.mu.Unlock()
	t.observers.Notify(e)
}

// Entries returns the buffered entries in recording order.
func (t *PerformanceTimeline) Entries() []PerformanceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]PerformanceEntry(nil), t.entries...)
}

// Observe delivers future entries whose type is in types.
func (t *PerformanceTimeline) Observe(types []EntryType, fn func(PerformanceEntry)) (stop func()) {
	wanted := make(map[EntryType]bool, len(types))
	for _, ty := range types {
		wanted[ty] = true
	}
	sub := t.observers.Subscribe(func(e PerformanceEntry) {
		if wanted[e.EntryType] {
			fn(e)
		}
	})
	return sub.Unsubscribe
}
