// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package errorcollection

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/timeutil"
	"github.com/pkg/errors"
)

const (
	// NoStackHint replaces the stack of values that are not errors.
	NoStackHint  = "No stack, consider using an instance of error"
	emptyMessage = "Empty message"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// ComputeRawError normalizes any value into a raw error. prefix introduces
// the JSON rendering of values that are not errors ("Provided", "Uncaught").
func ComputeRawError(value interface{}, startTime timeutil.RelativeTime, source model.ErrorSource, prefix string) model.RawError {
	raw := model.RawError{StartTime: startTime, Source: source}

	err, ok := value.(error)
	if !ok || err == nil {
		raw.Message = prefix + " " + jsonString(value)
		raw.Stack = NoStackHint
		return raw
	}

	raw.Message = err.Error()
	if raw.Message == "" {
		raw.Message = emptyMessage
	}
	raw.Type = errorType(err)
	raw.Stack = stackString(raw.Type, raw.Message, err)
	return raw
}

// errorType names the concrete type of the root cause, without pointer marker.
func errorType(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", errors.Cause(err)), "*")
}

// stackString reuses the stack carried by err, or captures the current one.
func stackString(typ, msg string, err error) string {
	var st stackTracer
	if !errors.As(err, &st) {
		st = errors.WithStack(err).(stackTracer)
	}
	return fmt.Sprintf("%s: %s%+v", typ, msg, st.StackTrace())
}

func jsonString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
