// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model holds the SDK's internal domain records: raw errors, views and
// their timings.
package model

import "github.com/ManuGH/rumkit/internal/timeutil"

// ErrorSource tells where an error was observed.
type ErrorSource string

const (
	SourceCustom  ErrorSource = "custom"
	SourceNetwork ErrorSource = "network"
	SourceSource  ErrorSource = "source"
)

// ResourceInfo describes the failed network resource behind an error.
type ResourceInfo struct {
	Method     string
	StatusCode int
	URL        string
}

// RawError is a normalized observed error. It is never mutated after construction.
type RawError struct {
	StartTime timeutil.RelativeTime
	Source    ErrorSource
	Message   string
	Stack     string
	Type      string
	Resource  *ResourceInfo
}

// ProvidedError is an error handed to the SDK through AddError. Error may be
// any value, not only an error.
type ProvidedError struct {
	StartTime timeutil.RelativeTime
	Error     interface{}
	Context   map[string]interface{}
	Source    ErrorSource
}

// LoadingType tells how a view was reached.
type LoadingType string

const (
	LoadingInitialLoad LoadingType = "initial_load"
	LoadingRouteChange LoadingType = "route_change"
)

// Timings are the page-load timings of a view. A nil field is not known yet.
type Timings struct {
	DomComplete            *timeutil.Duration
	DomContentLoaded       *timeutil.Duration
	DomInteractive         *timeutil.Duration
	FirstContentfulPaint   *timeutil.Duration
	FirstInputDelay        *timeutil.Duration
	FirstInputTime         *timeutil.Duration
	LargestContentfulPaint *timeutil.Duration
	LoadEvent              *timeutil.Duration
}

// Merge copies every field set in partial. Fields absent from partial are kept,
// so accumulated timings are never cleared.
func (t *Timings) Merge(partial Timings) {
	merge := func(dst **timeutil.Duration, src *timeutil.Duration) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	merge(&t.DomComplete, partial.DomComplete)
	merge(&t.DomContentLoaded, partial.DomContentLoaded)
	merge(&t.DomInteractive, partial.DomInteractive)
	merge(&t.FirstContentfulPaint, partial.FirstContentfulPaint)
	merge(&t.FirstInputDelay, partial.FirstInputDelay)
	merge(&t.FirstInputTime, partial.FirstInputTime)
	merge(&t.LargestContentfulPaint, partial.LargestContentfulPaint)
	merge(&t.LoadEvent, partial.LoadEvent)
}

// IsZero reports whether no timing is set.
func (t Timings) IsZero() bool {
	return t == Timings{}
}

// EventCounts counts the events collected while a view is active.
type EventCounts struct {
	ActionCount   int
	ErrorCount    int
	LongTaskCount int
	ResourceCount int
}

// View is a snapshot of a logical page visit.
type View struct {
	ID                    string
	Name                  string
	Location              string
	Referrer              string
	StartTime             timeutil.RelativeTime
	DocumentVersion       int
	CumulativeLayoutShift *float64
	LoadingType           LoadingType
	LoadingTime           *timeutil.Duration
	EventCounts           EventCounts
	IsActive              bool
	Duration              timeutil.Duration
	Timings               Timings
	CustomTimings         map[string]timeutil.Duration
}

// ViewCreatedEvent announces a new view.
type ViewCreatedEvent struct {
	ID        string
	Name      string
	Location  string
	Referrer  string
	StartTime timeutil.RelativeTime
}

// ViewEndedEvent announces that a view stopped being the current one.
type ViewEndedEvent struct {
	ID      string
	EndTime timeutil.RelativeTime
}
