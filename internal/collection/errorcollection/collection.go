// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package errorcollection turns observed application errors into error events.
package errorcollection

import (
	"github.com/ManuGH/rumkit/internal/collection"
	"github.com/ManuGH/rumkit/internal/lifecycle"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/observable"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/rs/zerolog"
)

// Collector publishes one error event per automatic or provided error.
type Collector struct {
	bus    *lifecycle.Bus
	clock  *timeutil.Clock
	logger zerolog.Logger
	sub    observable.Subscription
}

// Start subscribes to automatic errors. automatic may be nil when only
// AddError is used.
func Start(bus *lifecycle.Bus, clock *timeutil.Clock, automatic *observable.Observable[model.RawError]) *Collector {
	c := &Collector{
		bus:    bus,
		clock:  clock,
		logger: xglog.WithComponent("errorcollection"),
	}
	if automatic != nil {
		c.sub = automatic.Subscribe(func(e model.RawError) {
			collection.Emit(bus, c.process(e))
		})
	}
	return c
}

// AddError reports an error handed over by the application. The value may be
// anything; only genuine errors carry a stack and a type.
func (c *Collector) AddError(provided model.ProvidedError, saved *rumevent.CommonContext) {
	raw := ComputeRawError(provided.Error, provided.StartTime, provided.Source, "Provided")
	ev := c.process(raw)
	ev.CustomerContext = provided.Context
	ev.SavedCommonContext = saved

	c.logger.Debug().
		Str(xglog.FieldEvent, "error.added").
		Str("source", string(raw.Source)).
		Msg("provided error collected")
	collection.Emit(c.bus, ev)
}

// Stop detaches from the automatic error source.
func (c *Collector) Stop() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
}

func (c *Collector) process(e model.RawError) rumevent.Collected {
	payload := rumevent.ErrorPayload{
		Message: e.Message,
		Source:  string(e.Source),
		Stack:   e.Stack,
		Type:    e.Type,
	}
	if e.Resource != nil {
		payload.Resource = &rumevent.ErrorResource{
			Method:     e.Resource.Method,
			StatusCode: e.Resource.StatusCode,
			URL:        e.Resource.URL,
		}
	}
	return rumevent.Collected{
		RawEvent: rumevent.ErrorEvent{
			Date:  c.clock.TimeStamp(e.StartTime),
			Type:  rumevent.TypeError,
			Error: payload,
		},
		StartTime: e.StartTime,
	}
}
