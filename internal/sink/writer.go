// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ManuGH/rumkit/internal/rumevent"
)

// Writer writes one JSON envelope per line.
type Writer struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closed bool
}

// NewWriter returns a newline-delimited JSON sink writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) Emit(_ context.Context, env Envelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.enc.Encode(env); err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return nil
}

// Close makes later Emit calls fail. The underlying writer is left open.
func (w *Writer) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

// Buffer keeps envelopes in memory.
type Buffer struct {
	mu    sync.Mutex
	env   []Envelope
	limit int
}

// NewBuffer returns an empty in-memory sink.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBoundedBuffer returns an in-memory sink keeping the newest limit
// envelopes.
func NewBoundedBuffer(limit int) *Buffer {
	return &Buffer{limit: limit}
}

func (b *Buffer) Emit(_ context.Context, env Envelope) error {
	b.mu.Lock()
	b.env = append(b.env, env)
	if b.limit > 0 && len(b.env) > b.limit {
		b.env = append(b.env[:0:0], b.env[len(b.env)-b.limit:]...)
	}
	b.mu.Unlock()
	return nil
}

// Envelopes returns a copy of the collected envelopes.
func (b *Buffer) Envelopes() []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Envelope, len(b.env))
	copy(out, b.env)
	return out
}

// Latest returns the highest document version seen for every view, the way
// the intake merges view updates.
func (b *Buffer) Latest() map[string]rumevent.ViewEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]rumevent.ViewEvent)
	for _, env := range b.env {
		v, ok := env.Event.(rumevent.ViewEvent)
		if !ok {
			continue
		}
		if prev, seen := out[v.View.ID]; seen && prev.DD.DocumentVersion >= v.DD.DocumentVersion {
			continue
		}
		out[v.View.ID] = v
	}
	return out
}
