// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package errorcollection

import (
	"fmt"
	"runtime/debug"

	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/monitor"
	"github.com/ManuGH/rumkit/internal/observable"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/ManuGH/rumkit/internal/xhrproxy"
	"github.com/rs/zerolog"
)

// DefaultResponseLengthLimit bounds the response body kept as a network error stack.
const DefaultResponseLengthLimit = 32 * 1024

const failedToLoad = "Failed to load"

// AutomaticOptions configures automatic error sources.
type AutomaticOptions struct {
	// IsIntake excludes the SDK's own requests from network errors.
	IsIntake func(url string) bool
	// ResponseLengthLimit is in characters. Zero means DefaultResponseLengthLimit.
	ResponseLengthLimit int
}

// Automatic produces raw errors the application did not report itself.
type Automatic struct {
	clock  *timeutil.Clock
	mon    *monitor.Monitor
	opts   AutomaticOptions
	logger zerolog.Logger
	errors *observable.Observable[model.RawError]
}

// NewAutomatic returns an automatic error source with no producer attached.
func NewAutomatic(clock *timeutil.Clock, mon *monitor.Monitor, opts AutomaticOptions) *Automatic {
	if opts.ResponseLengthLimit <= 0 {
		opts.ResponseLengthLimit = DefaultResponseLengthLimit
	}
	return &Automatic{
		clock:  clock,
		mon:    mon,
		opts:   opts,
		logger: xglog.WithComponent("errorcollection"),
		errors: observable.New[model.RawError](),
	}
}

// Observable is the stream consumed by Start.
func (a *Automatic) Observable() *observable.Observable[model.RawError] {
	return a.errors
}

// TrackNetworkErrors reports rejected requests (status 0) and server errors
// (status >= 500) completed through px.
func (a *Automatic) TrackNetworkErrors(px *xhrproxy.Proxy) {
	px.OnRequestComplete(func(ctx *xhrproxy.CompleteContext) {
		if a.opts.IsIntake != nil && a.opts.IsIntake(ctx.URL) {
			return
		}
		if ctx.Status != 0 && ctx.Status < 500 {
			return
		}
		stack := truncate(ctx.Response, a.opts.ResponseLengthLimit)
		if stack == "" {
			stack = failedToLoad
		}
		a.errors.Notify(model.RawError{
			StartTime: ctx.StartTime,
			Source:    model.SourceNetwork,
			Message:   fmt.Sprintf("XHR error %s %s", ctx.Method, ctx.URL),
			Stack:     stack,
			Resource: &model.ResourceInfo{
				Method:     ctx.Method,
				StatusCode: ctx.Status,
				URL:        ctx.URL,
			},
		})
	})
}

// Guard runs host code. A panic escaping fn is reported as a source error and
// then re-raised, so the host sees the same panic it would without the SDK.
func (a *Automatic) Guard(fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		stack := debug.Stack()
		a.mon.Call("errorcollection.guard", func() {
			raw := ComputeRawError(r, a.clock.RelativeNow(), model.SourceSource, "Uncaught")
			if _, isErr := r.(error); isErr {
				raw.Stack = fmt.Sprintf("%s: %s\n%s", raw.Type, raw.Message, stack)
			}
			a.logger.Debug().
				Str(xglog.FieldEvent, "error.uncaught").
				Str("message", raw.Message).
				Msg("uncaught panic observed")
			a.errors.Notify(raw)
		})
		panic(r)
	}()
	fn()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
