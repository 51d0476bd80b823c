// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDumpWritesOneLinePerEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	envs := []sink.Envelope{
		{Type: rumevent.TypeView, SessionID: "s1", ViewID: "v1", Event: rumevent.ViewEvent{Type: rumevent.TypeView, View: rumevent.ViewPayload{ID: "v1"}}},
		{Type: rumevent.TypeError, SessionID: "s1", ViewID: "v1", Event: rumevent.ErrorEvent{Type: rumevent.TypeError, Error: rumevent.ErrorPayload{Message: "boom", Source: "custom"}}},
	}

	require.NoError(t, writeDump(path, envs))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.NoError(t, sc.Err())
	require.Len(t, lines, 2)
	assert.Equal(t, "view", lines[0]["type"])
	assert.Equal(t, "error", lines[1]["type"])
	assert.Equal(t, "boom", lines[1]["event"].(map[string]interface{})["error"].(map[string]interface{})["message"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestWriteDumpReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("stale\nstale\nstale\n"), 0o600))

	require.NoError(t, writeDump(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriteDumpFailsForMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "events.ndjson")
	assert.Error(t, writeDump(path, nil))
}
