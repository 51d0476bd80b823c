// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"errors"
	"net/http"
)

// ReadyState mirrors XMLHttpRequest.readyState.
type ReadyState int

const (
	Unsent ReadyState = iota
	Opened
	HeadersReceived
	Loading
	Done
)

// Request event types.
const (
	EventReadyStateChange = "readystatechange"
	EventLoad             = "load"
	EventError            = "error"
	EventAbort            = "abort"
	EventLoadEnd          = "loadend"
)

// ErrInvalidState is returned by Send when the request is not opened or was
// already sent.
var ErrInvalidState = errors.New("request is not in the opened state")

// XHR is a native request object. All of its methods must be called from the
// platform loop.
type XHR struct {
	platform *Platform

	method     string
	url        string
	header     http.Header
	readyState ReadyState
	status     int
	response   string
	sent       bool
	generation uint64
	cancel     func()

	// OnReadyStateChange is the handler property, invoked before listeners.
	OnReadyStateChange func(x *XHR)

	listeners map[string][]func(x *XHR)
	slots     map[interface{}]interface{}
}

// Open initialises the request through the platform's current methods.
func (x *XHR) Open(method, rawURL string) error {
	return x.platform.RequestMethods().Open(x, method, rawURL)
}

// Send starts the request through the platform's current methods.
func (x *XHR) Send(body []byte) error {
	return x.platform.RequestMethods().Send(x, body)
}

// Abort cancels an in-flight request. On a finished request it resets the
// object to Unsent without dispatching events.
func (x *XHR) Abort() {
	x.generation++
	if x.cancel != nil {
		x.cancel()
		x.cancel = nil
	}
	switch {
	case x.sent && x.readyState >= Opened && x.readyState < Done:
		x.sent = false
		x.readyState = Done
		x.status = 0
		x.response = ""
		x.dispatch(EventReadyStateChange)
		x.dispatch(EventAbort)
		x.dispatch(EventLoadEnd)
	case x.readyState == Done:
		x.readyState = Unsent
		x.status = 0
		x.response = ""
	}
}

// SetRequestHeader adds a header sent with the request.
func (x *XHR) SetRequestHeader(key, value string) {
	if x.header == nil {
		x.header = make(http.Header)
	}
	x.header.Add(key, value)
}

// RequestHeader returns the headers set so far.
func (x *XHR) RequestHeader() http.Header {
	return x.header
}

// Method returns the method passed to the native open.
func (x *XHR) Method() string { return x.method }

// URL returns the URL passed to the native open.
func (x *XHR) URL() string { return x.url }

// ReadyState returns the current ready state.
func (x *XHR) ReadyState() ReadyState { return x.readyState }

// Status returns the HTTP status, 0 before completion or after a failure.
func (x *XHR) Status() int { return x.status }

// Response returns the response body text.
func (x *XHR) Response() string { return x.response }

// AddEventListener registers fn for an event type.
func (x *XHR) AddEventListener(eventType string, fn func(x *XHR)) {
	if x.listeners == nil {
		x.listeners = make(map[string][]func(*XHR))
	}
	x.listeners[eventType] = append(x.listeners[eventType], fn)
}

// Value returns data attached to the request object under key.
func (x *XHR) Value(key interface{}) interface{} {
	return x.slots[key]
}

// SetValue attaches data to the request object.
func (x *XHR) SetValue(key, value interface{}) {
	if x.slots == nil {
		x.slots = make(map[interface{}]interface{})
	}
	x.slots[key] = value
}

// The methods below are the backend side of the object: request method
// implementations use them to move the request through its states.

// MarkOpened records method and URL and resets the object to Opened.
func (x *XHR) MarkOpened(method, rawURL string) {
	x.generation++
	if x.cancel != nil {
		x.cancel()
		x.cancel = nil
	}
	x.method = method
	x.url = rawURL
	x.header = nil
	x.status = 0
	x.response = ""
	x.sent = false
	x.readyState = Opened
	x.dispatch(EventReadyStateChange)
}

// MarkSent flags the request as in flight. cancel, when non-nil, is invoked by Abort.
// It returns the generation a later completion must match.
func (x *XHR) MarkSent(cancel func()) (uint64, error) {
	if x.readyState != Opened || x.sent {
		return 0, ErrInvalidState
	}
	x.sent = true
	x.cancel = cancel
	return x.generation, nil
}

// Complete finishes the request with a response, unless it was aborted or
// reopened since generation was issued.
func (x *XHR) Complete(generation uint64, status int, response string) {
	if !x.current(generation) {
		return
	}
	x.finish()
	x.status = status
	x.response = response
	x.dispatch(EventReadyStateChange)
	x.dispatch(EventLoad)
	x.dispatch(EventLoadEnd)
}

// Fail finishes the request with a network error.
func (x *XHR) Fail(generation uint64) {
	if !x.current(generation) {
		return
	}
	x.finish()
	x.status = 0
	x.response = ""
	x.dispatch(EventReadyStateChange)
	x.dispatch(EventError)
	x.dispatch(EventLoadEnd)
}

func (x *XHR) current(generation uint64) bool {
	return x.sent && x.generation == generation && x.readyState != Done
}

func (x *XHR) finish() {
	x.sent = false
	x.cancel = nil
	x.readyState = Done
}

func (x *XHR) dispatch(eventType string) {
	if eventType == EventReadyStateChange && x.OnReadyStateChange != nil {
		x.OnReadyStateChange(x)
	}
	for _, fn := range append([]func(*XHR){}, x.listeners[eventType]...) {
		fn(x)
	}
}
