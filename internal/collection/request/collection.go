// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package request bridges the request proxy to the lifecycle bus.
package request

import (
	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/lifecycle"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/xhrproxy"
	"github.com/rs/zerolog"
)

// TypeXHR is the request type of instrumented XHRs.
const TypeXHR = "xhr"

// Tracer correlates requests with distributed traces.
type Tracer interface {
	// TraceRequest may inject headers into x and store trace identifiers in ctx.
	TraceRequest(ctx *xhrproxy.StartContext, x *browser.XHR)
	// Finish ends the trace of a completed request. Aborted requests clear
	// their trace identifiers.
	Finish(ctx *xhrproxy.CompleteContext)
}

// Collector numbers requests and republishes their start and completion.
type Collector struct {
	bus    *lifecycle.Bus
	tracer Tracer
	logger zerolog.Logger
	next   int
}

// Start registers the collector on px. tracer may be nil.
func Start(bus *lifecycle.Bus, px *xhrproxy.Proxy, tracer Tracer) *Collector {
	c := &Collector{
		bus:    bus,
		tracer: tracer,
		logger: xglog.WithComponent("request"),
	}
	px.BeforeSend(c.beforeSend)
	px.OnRequestComplete(c.complete)
	return c
}

func (c *Collector) beforeSend(ctx *xhrproxy.StartContext, x *browser.XHR) {
	index := c.next
	c.next++
	ctx.Set(xhrproxy.ExtraRequestIndex, index)
	if c.tracer != nil {
		c.tracer.TraceRequest(ctx, x)
	}
	lifecycle.Notify(c.bus, lifecycle.RequestStarted, lifecycle.RequestStartEvent{RequestIndex: index})
}

func (c *Collector) complete(ctx *xhrproxy.CompleteContext) {
	if c.tracer != nil {
		c.tracer.Finish(ctx)
	}
	index, _ := ctx.Get(xhrproxy.ExtraRequestIndex)
	ev := lifecycle.RequestCompleteEvent{
		Type:      TypeXHR,
		Method:    ctx.Method,
		URL:       ctx.URL,
		Status:    ctx.Status,
		Response:  ctx.Response,
		StartTime: ctx.StartTime,
		Duration:  ctx.Duration,
		IsAborted: ctx.IsAborted,
		TraceID:   ctx.ExtraString(xhrproxy.ExtraTraceID),
		SpanID:    ctx.ExtraString(xhrproxy.ExtraSpanID),
	}
	if i, ok := index.(int); ok {
		ev.RequestIndex = i
	}
	c.logger.Trace().
		Str(xglog.FieldEvent, "request.completed").
		Int(xglog.FieldRequestIndex, ev.RequestIndex).
		Msg("request completed")
	lifecycle.Notify(c.bus, lifecycle.RequestCompleted, ev)
}
