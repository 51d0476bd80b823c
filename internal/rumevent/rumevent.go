// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package rumevent defines the output events handed to the transport layer.
// JSON field names are part of the intake contract and use snake_case.
package rumevent

import "github.com/ManuGH/rumkit/internal/timeutil"

// EventType is the top-level "type" of an output event.
type EventType string

const (
	TypeAction   EventType = "action"
	TypeError    EventType = "error"
	TypeLongTask EventType = "long_task"
	TypeResource EventType = "resource"
	TypeView     EventType = "view"
)

// RawEvent is implemented by every output event payload.
type RawEvent interface {
	EventType() EventType
}

// CommonContext is the global context and user captured when an event was
// produced, used when the event is assembled later.
type CommonContext struct {
	Context map[string]interface{} `json:"context,omitempty"`
	User    map[string]interface{} `json:"user,omitempty"`
}

// Collected is what collectors publish on the RawEventCollected lifecycle kind.
type Collected struct {
	RawEvent           RawEvent
	StartTime          timeutil.RelativeTime
	CustomerContext    map[string]interface{}
	SavedCommonContext *CommonContext
}

// Count wraps a counter the way the intake nests them ({"count": n}).
type Count struct {
	Count int `json:"count"`
}

// ErrorEvent reports an observed application error.
type ErrorEvent struct {
	Date  timeutil.TimeStamp `json:"date"`
	Type  EventType          `json:"type"`
	Error ErrorPayload       `json:"error"`
}

// ErrorPayload is the "error" object of an ErrorEvent.
type ErrorPayload struct {
	Message  string         `json:"message"`
	Resource *ErrorResource `json:"resource,omitempty"`
	Source   string         `json:"source"`
	Stack    string         `json:"stack,omitempty"`
	Type     string         `json:"type,omitempty"`
}

// ErrorResource describes the failed request behind a network error.
type ErrorResource struct {
	Method     string `json:"method"`
	StatusCode int    `json:"status_code"`
	URL        string `json:"url"`
}

func (ErrorEvent) EventType() EventType { return TypeError }

// LongTaskEvent reports a main-thread task longer than 50ms.
type LongTaskEvent struct {
	Date     timeutil.TimeStamp `json:"date"`
	Type     EventType          `json:"type"`
	LongTask LongTaskPayload    `json:"long_task"`
}

// LongTaskPayload is the "long_task" object of a LongTaskEvent.
type LongTaskPayload struct {
	Duration timeutil.ServerDuration `json:"duration"`
}

func (LongTaskEvent) EventType() EventType { return TypeLongTask }

// ViewEvent is one document version of a view.
type ViewEvent struct {
	DD   ViewInternal       `json:"_dd"`
	Date timeutil.TimeStamp `json:"date"`
	Type EventType          `json:"type"`
	View ViewPayload        `json:"view"`
}

// ViewInternal carries the fields used by the intake to merge view versions.
type ViewInternal struct {
	DocumentVersion int `json:"document_version"`
}

// ViewPayload is the "view" object of a ViewEvent.
type ViewPayload struct {
	ID                     string                             `json:"id"`
	URL                    string                             `json:"url"`
	Referrer               string                             `json:"referrer,omitempty"`
	Action                 Count                              `json:"action"`
	CumulativeLayoutShift  *float64                           `json:"cumulative_layout_shift,omitempty"`
	CustomTimings          map[string]timeutil.ServerDuration `json:"custom_timings,omitempty"`
	DomComplete            *timeutil.ServerDuration           `json:"dom_complete,omitempty"`
	DomContentLoaded       *timeutil.ServerDuration           `json:"dom_content_loaded,omitempty"`
	DomInteractive         *timeutil.ServerDuration           `json:"dom_interactive,omitempty"`
	Error                  Count                              `json:"error"`
	FirstContentfulPaint   *timeutil.ServerDuration           `json:"first_contentful_paint,omitempty"`
	FirstInputDelay        *timeutil.ServerDuration           `json:"first_input_delay,omitempty"`
	FirstInputTime         *timeutil.ServerDuration           `json:"first_input_time,omitempty"`
	IsActive               bool                               `json:"is_active"`
	Name                   string                             `json:"name,omitempty"`
	LargestContentfulPaint *timeutil.ServerDuration           `json:"largest_contentful_paint,omitempty"`
	LoadEvent              *timeutil.ServerDuration           `json:"load_event,omitempty"`
	LoadingTime            *timeutil.ServerDuration           `json:"loading_time,omitempty"`
	LoadingType            string                             `json:"loading_type"`
	LongTask               Count                              `json:"long_task"`
	Resource               Count                              `json:"resource"`
	TimeSpent              timeutil.ServerDuration            `json:"time_spent"`
}

func (ViewEvent) EventType() EventType { return TypeView }

// ResourceEvent reports a completed instrumented request.
type ResourceEvent struct {
	DD       *ResourceInternal  `json:"_dd,omitempty"`
	Date     timeutil.TimeStamp `json:"date"`
	Type     EventType          `json:"type"`
	Resource ResourcePayload    `json:"resource"`
}

// ResourceInternal links a resource to the trace it started.
type ResourceInternal struct {
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// ResourcePayload is the "resource" object of a ResourceEvent.
type ResourcePayload struct {
	Type       string                  `json:"type"`
	Method     string                  `json:"method"`
	URL        string                  `json:"url"`
	StatusCode int                     `json:"status_code"`
	Duration   timeutil.ServerDuration `json:"duration"`
}

func (ResourceEvent) EventType() EventType { return TypeResource }
