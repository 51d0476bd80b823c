// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package xhrproxy

import (
	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/timeutil"
)

// StartContext describes a request when it is sent. Before-send callbacks may
// mutate it; Extra is the extension point for fields owned by collectors
// (request index, trace identifiers, ...).
type StartContext struct {
	Method    string
	URL       string
	StartTime timeutil.RelativeTime
	Extra     map[string]interface{}
}

// Set stores a collector-owned value.
func (c *StartContext) Set(key string, value interface{}) {
	if c.Extra == nil {
		c.Extra = make(map[string]interface{})
	}
	c.Extra[key] = value
}

// Get returns a collector-owned value.
func (c *StartContext) Get(key string) (interface{}, bool) {
	v, ok := c.Extra[key]
	return v, ok
}

// CompleteContext is the start context plus the request outcome.
// IsAborted is false unless an abort event was observed.
type CompleteContext struct {
	StartContext
	Duration  timeutil.Duration
	Status    int
	Response  string
	IsAborted bool
}

type requestState int

const (
	statePending requestState = iota
	stateFinalized
)

// record is the per-request runtime state attached to the native request
// object. It is shared by every installation on the platform.
type record struct {
	ctx       CompleteContext
	state     requestState
	published bool
}

type recordKey struct{}

func recordOf(x *browser.XHR) (*record, bool) {
	r, ok := x.Value(recordKey{}).(*record)
	return r, ok
}

// finalize computes the outcome from x. Only the first call has an effect; it
// reports whether this call performed the transition.
func (r *record) finalize(now timeutil.RelativeTime, x *browser.XHR) bool {
	if r.state == stateFinalized {
		return false
	}
	r.state = stateFinalized
	r.ctx.Duration = timeutil.Elapsed(r.ctx.StartTime, now)
	r.ctx.Response = x.Response()
	r.ctx.Status = x.Status()
	return true
}

// Extra keys shared between collectors.
const (
	ExtraRequestIndex = "request_index"
	ExtraTraceID      = "trace_id"
	ExtraSpanID       = "span_id"
)

// ExtraString returns a string-valued extension field, or "".
func (c *StartContext) ExtraString(key string) string {
	s, _ := c.Extra[key].(string)
	return s
}
