// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"

	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/sink"
	"github.com/google/renameio/v2"
)

// writeDump replaces path with one NDJSON line per envelope. Readers never
// observe a partially written dump.
func writeDump(path string, envelopes []sink.Envelope) error {
	logger := xglog.WithComponent("dump")

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending dump file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending dump file")
		}
	}()

	w := sink.NewWriter(pendingFile)
	for _, env := range envelopes {
		if err := w.Emit(context.Background(), env); err != nil {
			return fmt.Errorf("write dump: %w", err)
		}
	}
	_ = w.Close()

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit dump file: %w", err)
	}
	return nil
}
