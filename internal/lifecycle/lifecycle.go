// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lifecycle is the SDK's internal publish/subscribe hub. The set of
// kinds is closed: each Kind value below fixes the payload type carried on it.
package lifecycle

import (
	"sync"

	"github.com/ManuGH/rumkit/internal/browser"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/metrics"
	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/monitor"
	"github.com/ManuGH/rumkit/internal/observable"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/rs/zerolog"
)

// Kind identifies an event kind and its payload type.
type Kind[T any] struct {
	name string
}

// String returns the kind name used in logs and metrics.
func (k Kind[T]) String() string { return k.name }

var (
	PerformanceEntryCollected = Kind[browser.PerformanceEntry]{name: "performance_entry_collected"}
	RawEventCollected         = Kind[rumevent.Collected]{name: "raw_event_collected"}
	RequestStarted            = Kind[RequestStartEvent]{name: "request_started"}
	RequestCompleted          = Kind[RequestCompleteEvent]{name: "request_completed"}
	ViewCreated               = Kind[model.ViewCreatedEvent]{name: "view_created"}
	ViewUpdated               = Kind[model.View]{name: "view_updated"}
	ViewEnded                 = Kind[model.ViewEndedEvent]{name: "view_ended"}
	SessionRenewed            = Kind[struct{}]{name: "session_renewed"}
	BeforeUnload              = Kind[struct{}]{name: "before_unload"}
)

// Bus owns the subscribers of every kind for one SDK instance.
type Bus struct {
	mon    *monitor.Monitor
	logger zerolog.Logger

	mu      sync.Mutex
	kinds   map[string]interface{}
	stopped bool
}

// New returns an empty bus. Subscribers run under mon.
func New(mon *monitor.Monitor) *Bus {
	return &Bus{
		mon:    mon,
		logger: xglog.WithComponent("lifecycle"),
		kinds:  make(map[string]interface{}),
	}
}

func observableFor[T any](b *Bus, k Kind[T]) *observable.Observable[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil
	}
	if o, ok := b.kinds[k.name]; ok {
		return o.(*observable.Observable[T])
	}
	o := observable.New[T]()
	b.kinds[k.name] = o
	return o
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

// Subscribe registers fn for kind k. A panic in fn is recovered and reported,
// and the remaining subscribers still run.
func Subscribe[T any](b *Bus, k Kind[T], fn func(T)) observable.Subscription {
	o := observableFor(b, k)
	if o == nil {
		return noopSubscription{}
	}
	return o.Subscribe(monitor.Wrap(b.mon, "lifecycle."+k.name, fn))
}

// Notify delivers v synchronously to the current subscribers of k, in
// registration order. Subscribers may notify again from their callback.
func Notify[T any](b *Bus, k Kind[T], v T) {
	o := observableFor(b, k)
	if o == nil {
		return
	}
	metrics.IncLifecycleNotification(k.name)
	if e := b.logger.Trace(); e.Enabled() {
		e.Str(xglog.FieldEvent, "lifecycle.notify").
			Str(xglog.FieldKind, k.name).
			Int("subscribers", o.Len()).
			Msg("notify")
	}
	o.Notify(v)
}

// SubscriberCount returns the number of subscribers of k.
func SubscriberCount[T any](b *Bus, k Kind[T]) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.kinds[k.name]
	if !ok {
		return 0
	}
	return o.(*observable.Observable[T]).Len()
}

// Stop drops every subscriber. Later Subscribe and Notify calls are no-ops.
func (b *Bus) Stop() {
	b.mu.Lock()
	kinds := b.kinds
	b.kinds = make(map[string]interface{})
	b.stopped = true
	b.mu.Unlock()

	for _, o := range kinds {
		if c, ok := o.(interface{ Clear() }); ok {
			c.Clear()
		}
	}
	b.logger.Debug().Str(xglog.FieldEvent, "lifecycle.stopped").Msg("lifecycle bus stopped")
}
