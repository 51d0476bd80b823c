// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID    = "session_id"
	FieldViewID       = "view_id"
	FieldRequestIndex = "request_index"
	FieldTraceID      = "trace_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldKind      = "kind"
	FieldEventType = "event_type"

	// Request fields
	FieldMethod     = "method"
	FieldURL        = "url"
	FieldStatusCode = "status_code"
	FieldAborted    = "aborted"
	FieldDurationMS = "duration_ms"

	// Diagnostics fields
	FieldPanic = "panic"
	FieldStack = "stack"
)
