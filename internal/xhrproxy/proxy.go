// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package xhrproxy instruments the platform's request methods to capture the
// start and completion of every request without changing what the host
// application observes.
package xhrproxy

import (
	"reflect"
	"sync"

	"github.com/ManuGH/rumkit/internal/browser"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/metrics"
	"github.com/ManuGH/rumkit/internal/monitor"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/rs/zerolog"
)

// BeforeSendFunc is called synchronously before the native send with the
// mutable start context and the request object.
type BeforeSendFunc func(ctx *StartContext, x *browser.XHR)

// CompleteFunc is called once per request with its finalized context.
type CompleteFunc func(ctx *CompleteContext)

// Proxy is the installation handle. It exists while the platform's methods are
// patched.
type Proxy struct {
	platform *browser.Platform
	clock    *timeutil.Clock
	mon      *monitor.Monitor
	logger   zerolog.Logger
	original browser.RequestMethods

	mu         sync.Mutex
	beforeSend []BeforeSendFunc
	onComplete []CompleteFunc
}

var (
	installMu     sync.Mutex
	installations = map[*browser.Platform]*Proxy{}
)

// Start patches the platform's request methods and returns the installation
// handle. If the platform is already instrumented, the existing handle is
// returned unchanged, so independent consumers share one patch.
func Start(p *browser.Platform, clock *timeutil.Clock, mon *monitor.Monitor) *Proxy {
	installMu.Lock()
	defer installMu.Unlock()

	if px, ok := installations[p]; ok {
		return px
	}
	px := &Proxy{
		platform: p,
		clock:    clock,
		mon:      mon,
		logger:   xglog.WithComponent("xhrproxy"),
	}
	px.original = p.SetRequestMethods(&instrumented{px: px})
	installations[p] = px
	px.logger.Debug().Str(xglog.FieldEvent, "xhrproxy.installed").Msg("request methods instrumented")
	return px
}

// Reset restores the platform's original methods and drops every callback.
// A later Start performs a fresh installation.
func Reset(p *browser.Platform) {
	installMu.Lock()
	defer installMu.Unlock()

	px, ok := installations[p]
	if !ok {
		return
	}
	delete(installations, p)
	p.SetRequestMethods(px.original)

	px.mu.Lock()
	px.beforeSend = nil
	px.onComplete = nil
	px.mu.Unlock()
	px.logger.Debug().Str(xglog.FieldEvent, "xhrproxy.reset").Msg("request methods restored")
}

// Stop is Reset for the handle's platform.
func (px *Proxy) Stop() {
	Reset(px.platform)
}

// BeforeSend registers a callback run before each instrumented send.
func (px *Proxy) BeforeSend(fn BeforeSendFunc) {
	px.mu.Lock()
	defer px.mu.Unlock()
	px.beforeSend = append(px.beforeSend, fn)
}

// OnRequestComplete registers a callback run once per completed request.
func (px *Proxy) OnRequestComplete(fn CompleteFunc) {
	px.mu.Lock()
	defer px.mu.Unlock()
	px.onComplete = append(px.onComplete, fn)
}

func (px *Proxy) callbacks() ([]BeforeSendFunc, []CompleteFunc) {
	px.mu.Lock()
	defer px.mu.Unlock()
	return append([]BeforeSendFunc(nil), px.beforeSend...), append([]CompleteFunc(nil), px.onComplete...)
}

// instrumented decorates the original methods. The original methods are always
// invoked and their errors returned untouched.
type instrumented struct {
	px *Proxy
}

func (i *instrumented) Open(x *browser.XHR, method, rawURL string) error {
	px := i.px
	px.mon.Call("xhrproxy.open", func() {
		// The record lives on the request object and must stay readable by
		// any installation on this platform.
		x.SetValue(recordKey{}, &record{ctx: CompleteContext{StartContext: StartContext{
			Method:    method,
			URL:       px.platform.NormalizeURL(rawURL),
			StartTime: timeutil.Unset,
		}}})
	})
	return px.original.Open(x, method, rawURL)
}

func (i *instrumented) Send(x *browser.XHR, body []byte) error {
	px := i.px
	px.mon.Call("xhrproxy.send", func() {
		rec, ok := recordOf(x)
		if !ok {
			return
		}
		rec.ctx.StartTime = px.clock.RelativeNow()
		px.wrapReadyStateChange(x)

		x.AddEventListener(browser.EventAbort, monitor.Wrap(px.mon, "xhrproxy.abort", func(x *browser.XHR) {
			if cur, ok := recordOf(x); ok && cur == rec {
				rec.ctx.IsAborted = true
			}
		}))

		x.AddEventListener(browser.EventLoadEnd, monitor.Wrap(px.mon, "xhrproxy.loadend", func(x *browser.XHR) {
			// Listeners outlive their request when the object is reused.
			if cur, ok := recordOf(x); !ok || cur != rec || rec.published {
				return
			}
			rec.finalize(px.clock.RelativeNow(), x)
			rec.published = true
			px.publish(&rec.ctx)
		}))

		before, _ := px.callbacks()
		for _, fn := range before {
			fn := fn
			px.mon.Call("xhrproxy.before_send", func() { fn(&rec.ctx.StartContext, x) })
		}
	})
	return px.original.Send(x, body)
}

type readyStateKey struct{}

// readyStateWrapper is installed once per request object and finalizes
// whichever request is current when DONE is reached.
type readyStateWrapper struct {
	px   *Proxy
	host func(*browser.XHR)
	fn   func(*browser.XHR)
}

// wrapReadyStateChange makes DONE finalize the current record before the
// host handler runs. A reused object keeps its wrapper unless the host
// replaced the handler since the previous send.
func (px *Proxy) wrapReadyStateChange(x *browser.XHR) {
	host := x.OnReadyStateChange
	if prev, ok := x.Value(readyStateKey{}).(*readyStateWrapper); ok && sameFunc(host, prev.fn) {
		if prev.px == px {
			return
		}
		// Left over from an earlier installation.
		host = prev.host
	}
	w := &readyStateWrapper{px: px, host: host}
	w.fn = func(x *browser.XHR) {
		if x.ReadyState() == browser.Done {
			// Finalize now: the host may mutate the request from a later
			// event (e.g. abort a finished request, resetting its status).
			px.mon.Call("xhrproxy.readystatechange", func() {
				if rec, ok := recordOf(x); ok {
					rec.finalize(px.clock.RelativeNow(), x)
				}
			})
		}
		if w.host != nil {
			w.host(x)
		}
	}
	x.SetValue(readyStateKey{}, w)
	x.OnReadyStateChange = w.fn
}

func sameFunc(a, b func(*browser.XHR)) bool {
	if a == nil || b == nil {
		return false
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func (px *Proxy) publish(ctx *CompleteContext) {
	metrics.IncRequestFinalized(outcome(ctx))
	px.logger.Debug().
		Str(xglog.FieldEvent, "xhrproxy.complete").
		Str(xglog.FieldMethod, ctx.Method).
		Str(xglog.FieldURL, ctx.URL).
		Int(xglog.FieldStatusCode, ctx.Status).
		Bool(xglog.FieldAborted, ctx.IsAborted).
		Float64(xglog.FieldDurationMS, float64(ctx.Duration)).
		Msg("request completed")

	_, complete := px.callbacks()
	for _, fn := range complete {
		fn := fn
		px.mon.Call("xhrproxy.on_complete", func() { fn(ctx) })
	}
}

func outcome(ctx *CompleteContext) string {
	switch {
	case ctx.IsAborted:
		return "aborted"
	case ctx.Status == 0:
		return "failed"
	default:
		return "success"
	}
}
