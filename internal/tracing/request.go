// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/rumkit/internal/browser"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/ManuGH/rumkit/internal/xhrproxy"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const extraSpan = "otel_span"

// RequestTracer starts a client span for every request sent to an allowed
// origin and injects its context into the request headers.
type RequestTracer struct {
	tracer     trace.Tracer
	clock      *timeutil.Clock
	allowed    func(rawURL string) bool
	propagator propagation.TextMapPropagator
	logger     zerolog.Logger
}

// NewRequestTracer returns a tracer for requests. A nil allowed traces
// nothing.
func NewRequestTracer(tracer trace.Tracer, clock *timeutil.Clock, allowed func(rawURL string) bool) *RequestTracer {
	if allowed == nil {
		allowed = func(string) bool { return false }
	}
	return &RequestTracer{
		tracer:     tracer,
		clock:      clock,
		allowed:    allowed,
		propagator: Propagator(),
		logger:     xglog.WithComponent("tracing"),
	}
}

// TraceRequest implements request.Tracer.
func (t *RequestTracer) TraceRequest(ctx *xhrproxy.StartContext, x *browser.XHR) {
	if !t.allowed(ctx.URL) {
		return
	}
	index, _ := ctx.Get(xhrproxy.ExtraRequestIndex)
	i, _ := index.(int)

	spanCtx, span := t.tracer.Start(context.Background(), "xhr "+ctx.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(t.at(ctx.StartTime)),
		trace.WithAttributes(RequestAttributes(ctx.Method, ctx.URL, i)...),
	)
	sc := span.SpanContext()
	if !sc.IsValid() {
		span.End()
		return
	}
	t.propagator.Inject(spanCtx, headerCarrier{x: x})
	ctx.Set(extraSpan, span)
	ctx.Set(xhrproxy.ExtraTraceID, sc.TraceID().String())
	ctx.Set(xhrproxy.ExtraSpanID, sc.SpanID().String())

	t.logger.Trace().
		Str(xglog.FieldEvent, "tracing.span_started").
		Str(xglog.FieldTraceID, sc.TraceID().String()).
		Str(xglog.FieldURL, ctx.URL).
		Msg("request traced")
}

// Finish implements request.Tracer. An aborted request that never received a
// status loses its trace identifiers.
func (t *RequestTracer) Finish(ctx *xhrproxy.CompleteContext) {
	v, _ := ctx.Get(extraSpan)
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	delete(ctx.Extra, extraSpan)

	span.SetAttributes(CompletionAttributes(ctx.Status, ctx.IsAborted)...)
	switch {
	case ctx.IsAborted && ctx.Status == 0:
		span.SetStatus(codes.Error, "aborted")
		delete(ctx.Extra, xhrproxy.ExtraTraceID)
		delete(ctx.Extra, xhrproxy.ExtraSpanID)
	case ctx.Status == 0:
		span.SetStatus(codes.Error, "network error")
	case ctx.Status >= http.StatusInternalServerError:
		span.SetStatus(codes.Error, http.StatusText(ctx.Status))
	}
	span.End(trace.WithTimestamp(t.at(ctx.StartTime).Add(ctx.Duration.Std())))
}

func (t *RequestTracer) at(rel timeutil.RelativeTime) time.Time {
	return t.clock.Origin().Add(timeutil.Duration(rel).Std())
}

// OriginMatcher returns a predicate accepting URLs whose origin is one of
// origins. Entries are normalized; a trailing "/" is ignored.
func OriginMatcher(origins []string) func(rawURL string) bool {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if n := browser.Origin(strings.TrimSuffix(o, "/")); n != "" {
			set[n] = struct{}{}
		}
	}
	return func(rawURL string) bool {
		_, ok := set[browser.Origin(rawURL)]
		return ok
	}
}

// headerCarrier writes propagation headers through the request's own header
// API so host-visible headers stay consistent.
type headerCarrier struct {
	x *browser.XHR
}

func (c headerCarrier) Get(key string) string { return c.x.RequestHeader().Get(key) }

func (c headerCarrier) Set(key, value string) { c.x.SetRequestHeader(key, value) }

func (c headerCarrier) Keys() []string {
	h := c.x.RequestHeader()
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys
}
