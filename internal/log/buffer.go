// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"encoding/json"
	"sync"
)

const (
	maxRecentLogs   = 200
	maxLineBytes    = 16 * 1024
	maxPartialBytes = 64 * 1024
)

// Entry is a decoded log line kept in the recent-diagnostics buffer.
type Entry struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields"`
}

// BufferMetrics counts lines the recent-diagnostics buffer refused.
type BufferMetrics struct {
	DroppedPartialOverflow uint64 `json:"dropped_partial_overflow"`
	DroppedTooLargeLines   uint64 `json:"dropped_too_large_lines"`
	DroppedIrrelevant      uint64 `json:"dropped_irrelevant"`
	DroppedMalformed       uint64 `json:"dropped_malformed"`
}

var (
	recentMu      sync.Mutex
	recent        []Entry
	bufferMetrics BufferMetrics
)

// structuredBufferWriter retains diagnostic lines (internal faults, warnings)
// so the probe can expose them without scraping stdout.
type structuredBufferWriter struct {
	mu      sync.Mutex
	partial bytes.Buffer
}

func (w *structuredBufferWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.partial.Len()+len(p) > maxPartialBytes && bytes.IndexByte(p, '\n') < 0 {
		w.partial.Reset()
		recentMu.Lock()
		bufferMetrics.DroppedPartialOverflow++
		recentMu.Unlock()
		return len(p), nil
	}

	w.partial.Write(p)
	for {
		data := w.partial.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, data[:idx])
		w.partial.Next(idx + 1)
		keepLine(line)
	}
	if w.partial.Len() == 0 {
		w.partial.Reset()
	}
	return len(p), nil
}

func keepLine(line []byte) {
	recentMu.Lock()
	defer recentMu.Unlock()

	if len(line) > maxLineBytes {
		bufferMetrics.DroppedTooLargeLines++
		return
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(line, &fields); err != nil {
		bufferMetrics.DroppedMalformed++
		return
	}
	if !relevant(fields) {
		bufferMetrics.DroppedIrrelevant++
		return
	}

	e := Entry{Fields: fields}
	e.Level, _ = fields["level"].(string)
	e.Message, _ = fields["message"].(string)
	recent = append(recent, e)
	if len(recent) > maxRecentLogs {
		recent = recent[len(recent)-maxRecentLogs:]
	}
}

// relevant keeps warnings and errors plus anything the monitor reported.
func relevant(fields map[string]interface{}) bool {
	switch fields["level"] {
	case "warn", "error", "fatal", "panic":
		return true
	}
	return fields[FieldComponent] == "monitor"
}

// GetRecentLogs returns a copy of the retained diagnostic entries, oldest first.
func GetRecentLogs() []Entry {
	recentMu.Lock()
	defer recentMu.Unlock()
	out := make([]Entry, len(recent))
	copy(out, recent)
	return out
}

// ClearRecentLogs drops every retained entry.
func ClearRecentLogs() {
	recentMu.Lock()
	defer recentMu.Unlock()
	recent = nil
}

// GetBufferMetrics returns a snapshot of the buffer drop counters.
func GetBufferMetrics() BufferMetrics {
	recentMu.Lock()
	defer recentMu.Unlock()
	return bufferMetrics
}
