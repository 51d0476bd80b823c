// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sink hands collected events over to the transport side.
package sink

import (
	"context"
	"errors"

	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/timeutil"
)

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("sink closed")

// Envelope is a collected event with the context it was produced in.
type Envelope struct {
	Type      rumevent.EventType      `json:"type"`
	StartTime timeutil.RelativeTime   `json:"start_time"`
	SessionID string                  `json:"session_id,omitempty"`
	ViewID    string                  `json:"view_id,omitempty"`
	Event     rumevent.RawEvent       `json:"event"`
	Context   map[string]interface{}  `json:"context,omitempty"`
	Common    *rumevent.CommonContext `json:"common,omitempty"`
}

// Sink receives envelopes. Emit is called from the event loop and must not
// block for long.
type Sink interface {
	Emit(ctx context.Context, env Envelope) error
}

// Multi fans an envelope out to several sinks and joins their errors.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, env Envelope) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
