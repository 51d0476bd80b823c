// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import "github.com/ManuGH/rumkit/internal/timeutil"

// RequestStartEvent is published before an instrumented request is sent.
type RequestStartEvent struct {
	RequestIndex int
}

// RequestCompleteEvent is published once per finished instrumented request.
type RequestCompleteEvent struct {
	RequestIndex int
	Type         string
	Method       string
	URL          string
	Status       int
	Response     string
	StartTime    timeutil.RelativeTime
	Duration     timeutil.Duration
	IsAborted    bool
	TraceID      string
	SpanID       string
}
