// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package rum assembles the collectors into a running SDK instance.
package rum

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/collection/errorcollection"
	"github.com/ManuGH/rumkit/internal/collection/longtask"
	"github.com/ManuGH/rumkit/internal/collection/request"
	"github.com/ManuGH/rumkit/internal/collection/resource"
	"github.com/ManuGH/rumkit/internal/collection/view"
	"github.com/ManuGH/rumkit/internal/config"
	"github.com/ManuGH/rumkit/internal/lifecycle"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/monitor"
	"github.com/ManuGH/rumkit/internal/observable"
	"github.com/ManuGH/rumkit/internal/performance"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/session"
	"github.com/ManuGH/rumkit/internal/sink"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/ManuGH/rumkit/internal/tracing"
	"github.com/ManuGH/rumkit/internal/version"
	"github.com/ManuGH/rumkit/internal/xhrproxy"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoSink is returned by Start when Options.Sink is nil.
var ErrNoSink = errors.New("rum: no sink configured")

// Options wires an SDK instance to its environment.
type Options struct {
	Config   config.Configuration
	Platform *browser.Platform
	Sink     sink.Sink

	// Optional collaborators; zero values use defaults.
	Clock   *timeutil.Clock
	Monitor *monitor.Monitor
	Tracer  trace.Tracer
	NewID   func() string
}

// RUM is a running SDK instance. Except for the context setters, its methods
// must be called from the platform's event loop.
type RUM struct {
	cfg      config.Configuration
	platform *browser.Platform
	clock    *timeutil.Clock
	bus      *lifecycle.Bus
	logger   zerolog.Logger

	proxy      *xhrproxy.Proxy
	sessions   *session.Manager
	automatic  *errorcollection.Automatic
	errors     *errorcollection.Collector
	resources  *resource.Collector
	views      *view.Tracker
	attachment *sink.Attachment
	stops      []func()
	subs       []observable.Subscription

	ctxMu         sync.RWMutex
	globalContext map[string]interface{}
	user          map[string]interface{}

	keepAlive chan struct{}
	stopOnce  sync.Once
}

// Start instruments the platform and begins collecting. Events reach
// opts.Sink stamped with the session, the view and the global context.
func Start(ctx context.Context, opts Options) (*RUM, error) {
	if opts.Sink == nil {
		return nil, ErrNoSink
	}
	if opts.Platform == nil {
		return nil, errors.New("rum: no platform")
	}
	if err := config.Validate(opts.Config); err != nil {
		return nil, fmt.Errorf("rum: %w", err)
	}
	cfg := opts.Config
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.NewClock()
	}
	mon := opts.Monitor
	if mon == nil {
		mon = monitor.New()
	}

	r := &RUM{
		cfg:       cfg,
		platform:  opts.Platform,
		clock:     clock,
		bus:       lifecycle.New(mon),
		logger:    xglog.WithComponent("rum"),
		keepAlive: make(chan struct{}),
	}

	r.sessions = session.New(r.bus, clock, session.Options{
		ExpireDelay: cfg.Session.ExpireDelay,
		MaxDuration: cfg.Session.MaxDuration,
		NewID:       opts.NewID,
	})
	// Attach first so the initial view's creation is seen by the sink.
	r.attachment = sink.Attach(ctx, r.bus, &contextSink{next: opts.Sink, rum: r}, "primary", r.sessions)

	r.proxy = xhrproxy.Start(opts.Platform, clock, mon)
	request.Start(r.bus, r.proxy, r.requestTracer(opts.Tracer))

	r.automatic = errorcollection.NewAutomatic(clock, mon, errorcollection.AutomaticOptions{
		IsIntake:            cfg.IsIntakeRequest,
		ResponseLengthLimit: cfg.ResponseLengthLimit,
	})
	if cfg.IsEnabled(config.FeatureNetworkErrors) {
		r.automatic.TrackNetworkErrors(r.proxy)
	}
	r.errors = errorcollection.Start(r.bus, clock, r.automatic.Observable())
	r.subs = append(r.subs, longtask.Start(r.bus, clock))
	if cfg.IsEnabled(config.FeatureResourceTiming) {
		r.resources = resource.Start(r.bus, clock)
	}

	r.views = view.Start(r.bus, clock, opts.Platform, view.Options{
		Referrer: cfg.Referrer,
		NewID:    opts.NewID,
	})

	// Collectors are subscribed; buffered entries can be replayed now.
	r.stops = append(r.stops, performance.Start(r.bus, opts.Platform.Timeline, mon, cfg.IsIntakeRequest))

	doc := opts.Platform.Document
	r.stops = append(r.stops,
		doc.AddEventListeners([]string{browser.EventKeyDown, browser.EventPointerDown, browser.EventVisibilityChange},
			monitor.Wrap(mon, "rum.activity", func(browser.Event) { r.sessions.Touch() }), false),
		doc.AddEventListener(browser.EventBeforeUnload,
			monitor.Wrap(mon, "rum.beforeunload", func(browser.Event) {
				lifecycle.Notify(r.bus, lifecycle.BeforeUnload, struct{}{})
			}), false),
	)
	r.startKeepAlive(cfg.KeepAliveInterval)

	build := version.Current()
	r.logger.Info().
		Str(xglog.FieldEvent, "rum.started").
		Str(xglog.FieldSessionID, r.sessions.ID()).
		Str("application_id", cfg.ApplicationID).
		Str("sdk_version", build.SDKVersion).
		Str("build_mode", build.BuildMode).
		Strs("experimental_features", cfg.EnableExperimentalFeatures).
		Msg("rum started")
	return r, nil
}

func (r *RUM) requestTracer(t trace.Tracer) request.Tracer {
	if len(r.cfg.AllowedTracingOrigins) == 0 {
		return nil
	}
	if t == nil {
		t = otel.Tracer("github.com/ManuGH/rumkit")
	}
	return tracing.NewRequestTracer(t, r.clock, tracing.OriginMatcher(r.cfg.AllowedTracingOrigins))
}

// startKeepAlive republishes the current view periodically so its
// time_spent stays fresh while the page is idle.
func (r *RUM) startKeepAlive(every time.Duration) {
	if every <= 0 {
		return
	}
	loop := r.platform.Loop
	done := r.keepAlive
	loop.Go(func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				loop.Post(r.views.Refresh)
			}
		}
	})
}

// AddError reports an application error. err may be any value. A zero
// source means custom.
func (r *RUM) AddError(err interface{}, attrs map[string]interface{}, source model.ErrorSource) {
	if source == "" {
		source = model.SourceCustom
	}
	r.errors.AddError(model.ProvidedError{
		StartTime: r.clock.RelativeNow(),
		Error:     err,
		Context:   maps.Clone(attrs),
		Source:    source,
	}, r.commonContext())
}

// Guard runs host code, reporting a panic escaping it before re-raising.
func (r *RUM) Guard(fn func()) {
	r.automatic.Guard(fn)
}

// AddTiming records a custom timing on the current view.
func (r *RUM) AddTiming(name string) {
	r.views.AddTiming(name)
}

// StartView starts a manually named view.
func (r *RUM) StartView(name string) {
	r.views.StartView(name)
}

// ChangeLocation navigates the page, starting a new view on route changes.
func (r *RUM) ChangeLocation(rawURL string) error {
	return r.views.ChangeLocation(rawURL)
}

// CurrentView returns a snapshot of the active view.
func (r *RUM) CurrentView() model.View {
	return r.views.Current()
}

// SessionID returns the current session id.
func (r *RUM) SessionID() string {
	return r.sessions.ID()
}

// SetGlobalContext replaces the context attached to every event.
func (r *RUM) SetGlobalContext(c map[string]interface{}) {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	r.globalContext = maps.Clone(c)
}

// AddGlobalContext sets one key of the global context.
func (r *RUM) AddGlobalContext(key string, value interface{}) {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	if r.globalContext == nil {
		r.globalContext = make(map[string]interface{})
	}
	r.globalContext[key] = value
}

// RemoveGlobalContext deletes one key of the global context.
func (r *RUM) RemoveGlobalContext(key string) {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	delete(r.globalContext, key)
}

// SetUser replaces the user attached to every event.
func (r *RUM) SetUser(u map[string]interface{}) {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	r.user = maps.Clone(u)
}

func (r *RUM) commonContext() *rumevent.CommonContext {
	r.ctxMu.RLock()
	defer r.ctxMu.RUnlock()
	return &rumevent.CommonContext{
		Context: maps.Clone(r.globalContext),
		User:    maps.Clone(r.user),
	}
}

// Stop ends the current view and removes every instrumentation. It is
// idempotent.
func (r *RUM) Stop() {
	r.stopOnce.Do(func() {
		close(r.keepAlive)
		lifecycle.Notify(r.bus, lifecycle.BeforeUnload, struct{}{})

		r.views.Stop()
		for _, stop := range r.stops {
			stop()
		}
		for _, s := range r.subs {
			s.Unsubscribe()
		}
		r.errors.Stop()
		if r.resources != nil {
			r.resources.Stop()
		}
		r.proxy.Stop()
		r.attachment.Detach()
		r.bus.Stop()

		r.logger.Info().
			Str(xglog.FieldEvent, "rum.stopped").
			Str(xglog.FieldSessionID, r.sessions.ID()).
			Msg("rum stopped")
	})
}

// contextSink stamps events that did not save their own common context with
// the current one.
type contextSink struct {
	next sink.Sink
	rum  *RUM
}

func (s *contextSink) Emit(ctx context.Context, env sink.Envelope) error {
	if env.Common == nil {
		env.Common = s.rum.commonContext()
	}
	return s.next.Emit(ctx, env)
}
