// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package browser models the page surfaces the SDK observes: the request object
// and its patchable method pair, the document (visibility and input events), the
// performance timeline and the cooperative event loop that delivers callbacks.
package browser

import (
	"fmt"
	"net/url"
	"sync"
)

// RequestMethods is the patchable open/send pair shared by every XHR of a
// platform. Instrumentation replaces it with a decorator that delegates to the
// previous value.
type RequestMethods interface {
	Open(x *XHR, method, rawURL string) error
	Send(x *XHR, body []byte) error
}

// Platform owns the process-wide request methods and the page surfaces.
type Platform struct {
	mu       sync.RWMutex
	methods  RequestMethods
	location *url.URL

	Document *Document
	Timeline *PerformanceTimeline
	Loop     *Loop
}

// PlatformOption configures a Platform.
type PlatformOption func(*Platform)

// WithDocument sets the page document.
func WithDocument(d *Document) PlatformOption {
	return func(p *Platform) { p.Document = d }
}

// WithTimeline sets the performance timeline.
func WithTimeline(t *PerformanceTimeline) PlatformOption {
	return func(p *Platform) { p.Timeline = t }
}

// WithLoop sets the event loop.
func WithLoop(l *Loop) PlatformOption {
	return func(p *Platform) { p.Loop = l }
}

// NewPlatform creates a platform for the page at location whose requests are
// served by methods.
func NewPlatform(location string, methods RequestMethods, opts ...PlatformOption) (*Platform, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	if !loc.IsAbs() {
		return nil, fmt.Errorf("location %q is not absolute", location)
	}
	p := &Platform{methods: methods, location: loc}
	for _, opt := range opts {
		opt(p)
	}
	if p.Document == nil {
		p.Document = NewDocument(Visible)
	}
	if p.Timeline == nil {
		p.Timeline = NewPerformanceTimeline()
	}
	if p.Loop == nil {
		p.Loop = NewLoop()
	}
	return p, nil
}

// RequestMethods returns the currently installed method pair.
func (p *Platform) RequestMethods() RequestMethods {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.methods
}

// SetRequestMethods installs a new method pair and returns the previous one.
func (p *Platform) SetRequestMethods(m RequestMethods) RequestMethods {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.methods
	p.methods = m
	return prev
}

// Location returns a copy of the current page location.
func (p *Platform) Location() *url.URL {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u := *p.location
	return &u
}

// SetLocation changes the page location, as history navigation would.
func (p *Platform) SetLocation(rawURL string) error {
	u, err := p.resolve(rawURL)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.location = u
	p.mu.Unlock()
	return nil
}

// NewXHR creates a request object bound to this platform.
func (p *Platform) NewXHR() *XHR {
	return &XHR{platform: p}
}

func (p *Platform) resolve(rawURL string) (*url.URL, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	return p.Location().ResolveReference(ref), nil
}
