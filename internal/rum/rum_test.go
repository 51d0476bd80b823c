// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rum

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/config"
	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/monitor"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/sink"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
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
	if err != nil {
		return err
	}
	m.gen[x] = g
	return nil
}

type harness struct {
	rum      *RUM
	platform *browser.Platform
	native   *manualMethods
	buffer   *sink.Buffer
	spans    *tracetest.SpanRecorder
	now      time.Duration
}

func newHarness(t *testing.T, mutate func(*config.Configuration)) *harness {
	t.Helper()
	h := &harness{
		native: &manualMethods{gen: map[*browser.XHR]uint64{}},
		buffer: sink.NewBuffer(),
		spans:  tracetest.NewSpanRecorder(),
	}
	p, err := browser.NewPlatform("https://shop.example.com/cart", h.native)
	require.NoError(t, err)
	h.platform = p

	cfg := config.Defaults()
	cfg.Location = "https://shop.example.com/cart"
	if mutate != nil {
		mutate(&cfg)
	}

	origin := time.Unix(1_700_000_000, 0)
	clock := timeutil.NewClockAt(origin, func() time.Time { return origin.Add(h.now) })
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var n int
	h.rum, err = Start(context.Background(), Options{
		Config:   cfg,
		Platform: p,
		Sink:     h.buffer,
		Clock:    clock,
		Monitor:  monitor.New(monitor.WithLogger(zerolog.New(io.Discard))),
		Tracer:   tp.Tracer("test"),
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		h.rum.Stop()
		p.Loop.Close()
	})
	return h
}

func (h *harness) request(t *testing.T, method, url string, status int, body string) *browser.XHR {
	t.Helper()
	x := h.platform.NewXHR()
	require.NoError(t, x.Open(method, url))
	require.NoError(t, x.Send(nil))
	h.now += 40 * time.Millisecond
	x.Complete(h.native.gen[x], status, body)
	return x
}

func (h *harness) ofType(typ rumevent.EventType) []sink.Envelope {
	var out []sink.Envelope
	for _, env := range h.buffer.Envelopes() {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func TestStartRequiresSink(t *testing.T) {
	p, err := browser.NewPlatform("https://a.example.com/", &manualMethods{})
	require.NoError(t, err)
	_, err = Start(context.Background(), Options{Config: config.Defaults(), Platform: p})
	assert.ErrorIs(t, err, ErrNoSink)
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	p, err := browser.NewPlatform("https://a.example.com/", &manualMethods{})
	require.NoError(t, err)
	cfg := config.Defaults()
	cfg.ResponseLengthLimit = 0
	_, err = Start(context.Background(), Options{Config: cfg, Platform: p, Sink: sink.NewBuffer()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "responseLengthLimit")
}

func TestStartEmitsInitialView(t *testing.T) {
	h := newHarness(t, nil)

	assert.Equal(t, "id-1", h.rum.SessionID())
	views := h.buffer.Latest()
	require.Contains(t, views, "id-2")
	v := views["id-2"]
	assert.Equal(t, "initial_load", v.View.LoadingType)
	assert.Equal(t, "https://shop.example.com/cart", v.View.URL)
	assert.True(t, v.View.IsActive)

	envs := h.ofType(rumevent.TypeView)
	require.NotEmpty(t, envs)
	assert.Equal(t, "id-1", envs[0].SessionID)
	assert.Equal(t, "id-2", envs[0].ViewID)
}

func TestRequestsBecomeResourcesAndNetworkErrors(t *testing.T) {
	h := newHarness(t, func(c *config.Configuration) {
		c.EnableExperimentalFeatures = []string{config.FeatureResourceTiming, config.FeatureNetworkErrors}
		c.AllowedTracingOrigins = []string{"https://api.example.com"}
	})

	x := h.request(t, "GET", "https://api.example.com/items", 503, "unavailable")
	assert.NotEmpty(t, x.RequestHeader().Get("traceparent"))

	resources := h.ofType(rumevent.TypeResource)
	require.Len(t, resources, 1)
	res := resources[0].Event.(rumevent.ResourceEvent)
	assert.Equal(t, 503, res.Resource.StatusCode)
	assert.EqualValues(t, 40_000_000, res.Resource.Duration)
	require.NotNil(t, res.DD)
	assert.NotEmpty(t, res.DD.TraceID)
	assert.Len(t, h.spans.Ended(), 1)

	errs := h.ofType(rumevent.TypeError)
	require.Len(t, errs, 1)
	ev := errs[0].Event.(rumevent.ErrorEvent)
	assert.Equal(t, "XHR error GET https://api.example.com/items", ev.Error.Message)
	assert.Equal(t, "unavailable", ev.Error.Stack)
	assert.Equal(t, "network", ev.Error.Source)

	v := h.buffer.Latest()["id-2"]
	assert.Equal(t, 1, v.View.Resource.Count)
	assert.Equal(t, 1, v.View.Error.Count)
}

func TestFeaturesDisabledByDefault(t *testing.T) {
	h := newHarness(t, nil)

	x := h.request(t, "GET", "https://api.example.com/items", 500, "")
	assert.Empty(t, x.RequestHeader().Get("traceparent"))
	assert.Empty(t, h.ofType(rumevent.TypeResource))
	assert.Empty(t, h.ofType(rumevent.TypeError))
	assert.Empty(t, h.spans.Started())
}

func TestAddErrorCarriesContexts(t *testing.T) {
	h := newHarness(t, nil)
	h.rum.SetGlobalContext(map[string]interface{}{"plan": "pro"})
	h.rum.SetUser(map[string]interface{}{"id": "u-1"})

	h.rum.AddError(fmt.Errorf("checkout failed"), map[string]interface{}{"step": 2}, "")
	h.rum.AddGlobalContext("plan", "enterprise")

	errs := h.ofType(rumevent.TypeError)
	require.Len(t, errs, 1)
	env := errs[0]
	assert.Equal(t, map[string]interface{}{"step": 2}, env.Context)
	require.NotNil(t, env.Common)
	assert.Equal(t, "pro", env.Common.Context["plan"], "context is captured when the error is added")
	assert.Equal(t, "u-1", env.Common.User["id"])

	ev := env.Event.(rumevent.ErrorEvent)
	assert.Equal(t, "checkout failed", ev.Error.Message)
	assert.Equal(t, "custom", ev.Error.Source)
}

func TestOtherEventsGetCurrentGlobalContext(t *testing.T) {
	h := newHarness(t, nil)
	h.rum.AddGlobalContext("tenant", "acme")
	h.rum.AddTiming("hero_image")

	envs := h.ofType(rumevent.TypeView)
	last := envs[len(envs)-1]
	require.NotNil(t, last.Common)
	assert.Equal(t, "acme", last.Common.Context["tenant"])

	h.rum.RemoveGlobalContext("tenant")
	h.rum.AddTiming("cta")
	envs = h.ofType(rumevent.TypeView)
	assert.NotContains(t, envs[len(envs)-1].Common.Context, "tenant")
}

func TestRouteChangeStartsNewView(t *testing.T) {
	h := newHarness(t, nil)
	h.now = time.Second

	require.NoError(t, h.rum.ChangeLocation("https://shop.example.com/checkout"))
	assert.Equal(t, "id-3", h.rum.CurrentView().ID)
	assert.Equal(t, model.LoadingRouteChange, h.rum.CurrentView().LoadingType)

	views := h.buffer.Latest()
	assert.False(t, views["id-2"].View.IsActive)
	assert.True(t, views["id-3"].View.IsActive)
	assert.Equal(t, "https://shop.example.com/cart", views["id-3"].View.Referrer)

	h.rum.AddError("boom", nil, model.SourceCustom)
	errs := h.ofType(rumevent.TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "id-3", errs[0].ViewID)
}

func TestBeforeUnloadEndsView(t *testing.T) {
	h := newHarness(t, nil)
	h.platform.Document.Dispatch(browser.Event{Type: browser.EventBeforeUnload})
	assert.False(t, h.buffer.Latest()["id-2"].View.IsActive)
}

func TestUserActivityRenewsExpiredSession(t *testing.T) {
	h := newHarness(t, nil)
	h.now = 16 * time.Minute

	h.platform.Document.Dispatch(browser.Event{Type: browser.EventKeyDown})
	assert.Equal(t, "id-3", h.rum.SessionID())
	assert.Equal(t, "id-4", h.rum.CurrentView().ID)
}

func TestGuardReportsPanics(t *testing.T) {
	h := newHarness(t, nil)
	assert.Panics(t, func() {
		h.rum.Guard(func() { panic("host bug") })
	})
	errs := h.ofType(rumevent.TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "source", errs[0].Event.(rumevent.ErrorEvent).Error.Source)
}

func TestStopRestoresPlatform(t *testing.T) {
	h := newHarness(t, nil)
	h.rum.Stop()
	h.rum.Stop()

	assert.Same(t, h.native, h.platform.RequestMethods())
	assert.False(t, h.buffer.Latest()["id-2"].View.IsActive)

	before := len(h.buffer.Envelopes())
	h.rum.AddTiming("late")
	h.request(t, "GET", "https://api.example.com/items", 500, "")
	assert.Len(t, h.buffer.Envelopes(), before)
}

func TestKeepAliveRefreshesView(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, func(c *config.Configuration) { c.KeepAliveInterval = 10 * time.Millisecond })
	first := h.buffer.Latest()["id-2"].DD.DocumentVersion

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.platform.Loop.RunOne(ctx))

	assert.Greater(t, h.buffer.Latest()["id-2"].DD.DocumentVersion, first)

	h.rum.Stop()
	h.platform.Loop.Close()
}
