// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package request

import (
	"io"
	"testing"
	"time"

	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/lifecycle"
	"github.com/ManuGH/rumkit/internal/monitor"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/ManuGH/rumkit/internal/xhrproxy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualMethods struct {
	gen map[*browser.XHR]uint64
}

func (m *manualMethods) Open(x *browser.XHR, method, rawURL string) error {
	x.MarkOpened(method, rawURL)
	return nil
}

func (m *manualMethods) Send(x *browser.XHR, _ []byte) error {
	g, err := x.MarkSent(nil)
	if err == nil {
		m.gen[x] = g
	}
	return err
}

type stubTracer struct {
	finished []bool
}

func (s *stubTracer) TraceRequest(ctx *xhrproxy.StartContext, x *browser.XHR) {
	ctx.Set(xhrproxy.ExtraTraceID, "trace-1")
	ctx.Set(xhrproxy.ExtraSpanID, "span-1")
	x.SetRequestHeader("traceparent", "00-trace-1-span-1-01")
}

func (s *stubTracer) Finish(ctx *xhrproxy.CompleteContext) {
	s.finished = append(s.finished, ctx.IsAborted)
	if ctx.IsAborted {
		delete(ctx.Extra, xhrproxy.ExtraTraceID)
		delete(ctx.Extra, xhrproxy.ExtraSpanID)
	}
}

type harness struct {
	platform  *browser.Platform
	native    *manualMethods
	tracer    *stubTracer
	started   []lifecycle.RequestStartEvent
	completed []lifecycle.RequestCompleteEvent
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{native: &manualMethods{gen: map[*browser.XHR]uint64{}}, tracer: &stubTracer{}}
	p, err := browser.NewPlatform("https://app.example.com/", h.native)
	require.NoError(t, err)
	h.platform = p

	mon := monitor.New(monitor.WithLogger(zerolog.New(io.Discard)))
	bus := lifecycle.New(mon)
	t.Cleanup(bus.Stop)

	origin := time.Unix(0, 0)
	px := xhrproxy.Start(p, timeutil.NewClockAt(origin, func() time.Time { return origin }), mon)
	t.Cleanup(px.Stop)

	Start(bus, px, h.tracer)
	lifecycle.Subscribe(bus, lifecycle.RequestStarted, func(e lifecycle.RequestStartEvent) { h.started = append(h.started, e) })
	lifecycle.Subscribe(bus, lifecycle.RequestCompleted, func(e lifecycle.RequestCompleteEvent) { h.completed = append(h.completed, e) })
	return h
}

func (h *harness) send(t *testing.T, url string) *browser.XHR {
	t.Helper()
	x := h.platform.NewXHR()
	require.NoError(t, x.Open("GET", url))
	require.NoError(t, x.Send(nil))
	return x
}

func TestRequestsAreIndexedAndRepublished(t *testing.T) {
	h := newHarness(t)

	a := h.send(t, "/a")
	b := h.send(t, "/b")
	b.Complete(h.native.gen[b], 201, "created")
	a.Complete(h.native.gen[a], 200, "ok")

	assert.Equal(t, []lifecycle.RequestStartEvent{{RequestIndex: 0}, {RequestIndex: 1}}, h.started)
	require.Len(t, h.completed, 2)

	first := h.completed[0]
	assert.Equal(t, 1, first.RequestIndex)
	assert.Equal(t, TypeXHR, first.Type)
	assert.Equal(t, "GET", first.Method)
	assert.Equal(t, "https://app.example.com/b", first.URL)
	assert.Equal(t, 201, first.Status)
	assert.Equal(t, "created", first.Response)
	assert.Equal(t, "trace-1", first.TraceID)
	assert.Equal(t, "span-1", first.SpanID)
	assert.Equal(t, "00-trace-1-span-1-01", b.RequestHeader().Get("traceparent"))

	assert.Equal(t, 0, h.completed[1].RequestIndex)
}

func TestAbortedRequestDropsTraceIdentifiers(t *testing.T) {
	h := newHarness(t)

	x := h.send(t, "/slow")
	x.Abort()

	require.Len(t, h.completed, 1)
	assert.True(t, h.completed[0].IsAborted)
	assert.Empty(t, h.completed[0].TraceID)
	assert.Equal(t, []bool{true}, h.tracer.finished)
}
