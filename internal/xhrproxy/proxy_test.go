// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package xhrproxy

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/monitor"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSendRefused = errors.New("send refused")

// fakeMethods records native calls; tests finish requests by hand.
type fakeMethods struct {
	opens   int
	sends   int
	gen     map[*browser.XHR]uint64
	sendErr error
}

func (f *fakeMethods) Open(x *browser.XHR, method, rawURL string) error {
	f.opens++
	x.MarkOpened(method, rawURL)
	return nil
}

func (f *fakeMethods) Send(x *browser.XHR, _ []byte) error {
	f.sends++
	if f.sendErr != nil {
		return f.sendErr
	}
	g, err := x.MarkSent(nil)
	if err != nil {
		return err
	}
	f.gen[x] = g
	return nil
}

type fixture struct {
	platform *browser.Platform
	native   *fakeMethods
	clock    *timeutil.Clock
	now      time.Duration
	proxy    *Proxy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{native: &fakeMethods{gen: map[*browser.XHR]uint64{}}}
	p, err := browser.NewPlatform("https://app.example.com/", f.native)
	require.NoError(t, err)
	f.platform = p
	origin := time.Unix(0, 0)
	f.clock = timeutil.NewClockAt(origin, func() time.Time { return origin.Add(f.now) })
	f.proxy = Start(p, f.clock, monitor.New(monitor.WithLogger(zerolog.New(io.Discard))))
	t.Cleanup(func() { Reset(p) })
	return f
}

func (f *fixture) complete(x *browser.XHR, status int, body string) {
	x.Complete(f.native.gen[x], status, body)
}

func (f *fixture) collect() *[]CompleteContext {
	var got []CompleteContext
	f.proxy.OnRequestComplete(func(ctx *CompleteContext) { got = append(got, *ctx) })
	return &got
}

func TestProxyCapturesStartAndComplete(t *testing.T) {
	f := newFixture(t)
	got := f.collect()

	var started []StartContext
	f.proxy.BeforeSend(func(ctx *StartContext, x *browser.XHR) {
		started = append(started, *ctx)
		ctx.Set("requestIndex", 7)
		x.SetRequestHeader("traceparent", "00-abc")
	})

	x := f.platform.NewXHR()
	require.NoError(t, x.Open("GET", "/api/items"))
	f.now = 1000 * time.Millisecond
	require.NoError(t, x.Send(nil))
	f.now = 1250 * time.Millisecond
	f.complete(x, 200, `{"ok":true}`)

	require.Len(t, started, 1)
	assert.Equal(t, "GET", started[0].Method)
	assert.Equal(t, "https://app.example.com/api/items", started[0].URL)
	assert.EqualValues(t, 1000, started[0].StartTime)
	assert.Equal(t, "00-abc", x.RequestHeader().Get("traceparent"))

	require.Len(t, *got, 1)
	c := (*got)[0]
	assert.EqualValues(t, 250, c.Duration)
	assert.Equal(t, 200, c.Status)
	assert.Equal(t, `{"ok":true}`, c.Response)
	assert.False(t, c.IsAborted)
	v, ok := c.Get("requestIndex")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	assert.Equal(t, 1, f.native.opens)
	assert.Equal(t, 1, f.native.sends)
}

func TestOpenLeavesStartTimeUnset(t *testing.T) {
	f := newFixture(t)
	x := f.platform.NewXHR()
	require.NoError(t, x.Open("GET", "/a"))

	rec, ok := recordOf(x)
	require.True(t, ok)
	assert.Equal(t, timeutil.Unset, rec.ctx.StartTime)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	x := f.platform.NewXHR()
	require.NoError(t, x.Open("GET", "/a"))
	require.NoError(t, x.Send(nil))
	f.complete(x, 200, "first")

	rec, ok := recordOf(x)
	require.True(t, ok)
	first := rec.ctx

	f.now = 5 * time.Second
	assert.False(t, rec.finalize(f.clock.RelativeNow(), x))
	assert.Equal(t, first.Duration, rec.ctx.Duration)
	assert.Equal(t, "first", rec.ctx.Response)
	assert.Equal(t, 200, rec.ctx.Status)
}

func TestHostMutationAfterDoneDoesNotCorruptContext(t *testing.T) {
	f := newFixture(t)
	got := f.collect()

	x := f.platform.NewXHR()
	require.NoError(t, x.Open("GET", "/a"))
	// Host code aborting an already finished request from its own handler.
	x.OnReadyStateChange = func(x *browser.XHR) {
		if x.ReadyState() == browser.Done {
			x.Abort()
		}
	}
	require.NoError(t, x.Send(nil))
	f.complete(x, 200, "body")

	require.Len(t, *got, 1)
	assert.Equal(t, 200, (*got)[0].Status)
	assert.Equal(t, "body", (*got)[0].Response)
	assert.False(t, (*got)[0].IsAborted)
}

func TestAbortBeforeDoneCompletesOnceAsAborted(t *testing.T) {
	f := newFixture(t)
	got := f.collect()

	x := f.platform.NewXHR()
	require.NoError(t, x.Open("GET", "/slow"))
	require.NoError(t, x.Send(nil))
	gen := f.native.gen[x]

	x.Abort()
	x.Complete(gen, 200, "late")

	require.Len(t, *got, 1)
	assert.True(t, (*got)[0].IsAborted)
	assert.Equal(t, 0, (*got)[0].Status)
}

func TestHostHandlerRunsAfterInternalFault(t *testing.T) {
	f := newFixture(t)
	var hostCalls int
	f.proxy.BeforeSend(func(*StartContext, *browser.XHR) { panic("collector bug") })
	f.proxy.OnRequestComplete(func(*CompleteContext) { panic("collector bug") })
	got := f.collect()

	x := f.platform.NewXHR()
	require.NoError(t, x.Open("GET", "/a"))
	x.OnReadyStateChange = func(*browser.XHR) { hostCalls++ }
	require.NoError(t, x.Send(nil))
	f.complete(x, 200, "")

	assert.Equal(t, 1, hostCalls)
	assert.Len(t, *got, 1, "sibling completion callbacks still run")
}

func TestNativeErrorsAreReturnedUntouched(t *testing.T) {
	f := newFixture(t)
	f.native.sendErr = errSendRefused

	x := f.platform.NewXHR()
	require.NoError(t, x.Open("GET", "/a"))
	assert.ErrorIs(t, x.Send(nil), errSendRefused)
	assert.Equal(t, 1, f.native.sends)
}

func TestStartIsSingletonPerPlatform(t *testing.T) {
	f := newFixture(t)
	again := Start(f.platform, f.clock, nil)
	assert.Same(t, f.proxy, again)

	got := f.collect()
	x := f.platform.NewXHR()
	require.NoError(t, x.Open("GET", "/a"))
	require.NoError(t, x.Send(nil))
	f.complete(x, 200, "")

	assert.Len(t, *got, 1, "methods must not be patched twice")
}

func TestResetRestoresMethodsAndClearsCallbacks(t *testing.T) {
	f := newFixture(t)
	var calls int
	f.proxy.OnRequestComplete(func(*CompleteContext) { calls++ })

	Reset(f.platform)
	assert.Same(t, f.native, f.platform.RequestMethods())

	x := f.platform.NewXHR()
	require.NoError(t, x.Open("GET", "/a"))
	require.NoError(t, x.Send(nil))
	f.complete(x, 200, "")
	assert.Zero(t, calls)
	_, instrumentedOpen := recordOf(x)
	assert.False(t, instrumentedOpen)

	fresh := Start(f.platform, f.clock, nil)
	assert.NotSame(t, f.proxy, fresh)
	var freshCalls int
	fresh.OnRequestComplete(func(*CompleteContext) { freshCalls++ })

	y := f.platform.NewXHR()
	require.NoError(t, y.Open("GET", "/b"))
	require.NoError(t, y.Send(nil))
	f.complete(y, 200, "")
	assert.Equal(t, 1, freshCalls)
	assert.Zero(t, calls, "callbacks from the previous installation are gone")
}

func TestSendWithoutInstrumentedOpenIsPassedThrough(t *testing.T) {
	f := newFixture(t)
	got := f.collect()

	x := f.platform.NewXHR()
	x.MarkOpened("GET", "https://app.example.com/raw")
	require.NoError(t, x.Send(nil))
	f.complete(x, 200, "")

	assert.Empty(t, *got)
	assert.Equal(t, 1, f.native.sends)
}

func TestReusedXHRCompletesOncePerRequest(t *testing.T) {
	f := newFixture(t)
	got := f.collect()

	x := f.platform.NewXHR()
	require.NoError(t, x.Open("GET", "/first"))
	require.NoError(t, x.Send(nil))
	f.complete(x, 200, "one")

	require.NoError(t, x.Open("GET", "/second"))
	require.NoError(t, x.Send(nil))
	f.complete(x, 500, "two")

	require.Len(t, *got, 2)
	assert.Equal(t, "https://app.example.com/first", (*got)[0].URL)
	assert.Equal(t, 200, (*got)[0].Status)
	assert.Equal(t, "https://app.example.com/second", (*got)[1].URL)
	assert.Equal(t, 500, (*got)[1].Status)
	assert.Equal(t, "two", (*got)[1].Response)
}

func TestReusedXHRAbortOnlyFlagsCurrentRequest(t *testing.T) {
	f := newFixture(t)
	got := f.collect()

	x := f.platform.NewXHR()
	require.NoError(t, x.Open("GET", "/first"))
	require.NoError(t, x.Send(nil))
	f.complete(x, 200, "")

	require.NoError(t, x.Open("GET", "/second"))
	require.NoError(t, x.Send(nil))
	x.Abort()

	require.Len(t, *got, 2)
	assert.False(t, (*got)[0].IsAborted)
	assert.True(t, (*got)[1].IsAborted)
}

func TestReusedXHRDoesNotStackReadyStateWrappers(t *testing.T) {
	f := newFixture(t)
	x := f.platform.NewXHR()
	var doneCalls int
	x.OnReadyStateChange = func(x *browser.XHR) {
		if x.ReadyState() == browser.Done {
			doneCalls++
		}
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, x.Open("GET", "/a"))
		require.NoError(t, x.Send(nil))
		f.complete(x, 200, "")
	}
	assert.Equal(t, 3, doneCalls, "host handler runs once per DONE")

	var replaced int
	x.OnReadyStateChange = func(*browser.XHR) { replaced++ }
	require.NoError(t, x.Open("GET", "/b"))
	require.NoError(t, x.Send(nil))
	f.complete(x, 200, "")
	assert.Equal(t, 3, doneCalls, "replaced handler is not called")
	assert.Positive(t, replaced)
}
