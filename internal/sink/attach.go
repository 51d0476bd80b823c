// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sink

import (
	"context"
	"fmt"

	"github.com/ManuGH/rumkit/internal/lifecycle"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/metrics"
	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/observable"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/session"
)

// Attachment connects a sink to a bus.
type Attachment struct {
	subs   []observable.Subscription
	viewID string
}

// Attach forwards every RawEventCollected event to s, stamped with the
// current session and view. Emit errors are logged and counted, never
// returned to the collectors. name labels the sink in logs and metrics.
func Attach(ctx context.Context, bus *lifecycle.Bus, s Sink, name string, sessions session.Provider) *Attachment {
	a := &Attachment{}
	logger := xglog.WithComponent("sink")

	a.subs = append(a.subs,
		lifecycle.Subscribe(bus, lifecycle.ViewCreated, func(v model.ViewCreatedEvent) {
			a.viewID = v.ID
		}),
		lifecycle.Subscribe(bus, lifecycle.RawEventCollected, func(c rumevent.Collected) {
			env := Envelope{
				Type:      c.RawEvent.EventType(),
				StartTime: c.StartTime,
				ViewID:    a.viewID,
				Event:     c.RawEvent,
				Context:   c.CustomerContext,
				Common:    c.SavedCommonContext,
			}
			if v, ok := c.RawEvent.(rumevent.ViewEvent); ok {
				env.ViewID = v.View.ID
			}
			if sessions != nil {
				env.SessionID = sessions.ID()
			}
			if err := s.Emit(ctx, env); err != nil {
				metrics.IncSinkError(name)
				logger.Warn().
					Err(fmt.Errorf("emit %s event: %w", env.Type, err)).
					Str(xglog.FieldEvent, "sink.emit_failed").
					Str("sink", name).
					Str(xglog.FieldEventType, string(env.Type)).
					Msg("sink rejected event")
			}
		}),
	)
	return a
}

// Detach stops forwarding.
func (a *Attachment) Detach() {
	for _, s := range a.subs {
		s.Unsubscribe()
	}
}
