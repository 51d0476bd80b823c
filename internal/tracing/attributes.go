// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Attribute keys specific to instrumented requests.
const (
	RequestIndexKey   = "rum.request.index"
	RequestAbortedKey = "rum.request.aborted"
	SessionIDKey      = "rum.session.id"
)

// RequestAttributes describes a request when its span starts.
func RequestAttributes(method, url string, index int) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.HTTPMethodKey.String(method),
		semconv.HTTPURLKey.String(url),
		attribute.Int(RequestIndexKey, index),
	}
}

// CompletionAttributes describes a request outcome.
func CompletionAttributes(status int, aborted bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Bool(RequestAbortedKey, aborted)}
	if status > 0 {
		attrs = append(attrs, semconv.HTTPStatusCodeKey.Int(status))
	}
	return attrs
}
