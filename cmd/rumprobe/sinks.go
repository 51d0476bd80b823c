// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/rumkit/internal/config"
	"github.com/ManuGH/rumkit/internal/sink"
	"github.com/rs/zerolog"
)

const (
	outputStdout = "-"
	outputRedis  = "redis"

	debugBufferSize = 1000
)

// sinkSet is every sink the probe forwards to plus the handles needed to
// close them in order.
type sinkSet struct {
	multi  sink.Multi
	writer *sink.Writer
	file   io.Closer
	redis  *sink.Redis
	buffer *sink.Buffer
}

// openSinks builds the sink fan-out from sink.output: "-" writes NDJSON to
// stdout, "redis" queues into Redis and any other value is a file path.
// An empty output keeps events in memory only.
func openSinks(ctx context.Context, cfg config.Configuration, keep bool) (*sinkSet, error) {
	s := &sinkSet{}
	switch out := cfg.Sink.Output; out {
	case "":
	case outputStdout:
		s.writer = sink.NewWriter(os.Stdout)
		s.multi = append(s.multi, s.writer)
	case outputRedis:
		r, err := sink.NewRedis(ctx, sink.RedisConfig{
			Addr:     cfg.Sink.Redis.Addr,
			Password: cfg.Sink.Redis.Password,
			DB:       cfg.Sink.Redis.DB,
			Prefix:   cfg.Sink.Redis.Prefix,
			ViewTTL:  cfg.Sink.Redis.ViewTTL,
			Queue:    cfg.Sink.Redis.Queue,
		})
		if err != nil {
			return nil, fmt.Errorf("redis sink: %w", err)
		}
		s.redis = r
		s.multi = append(s.multi, r)
	default:
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open sink output: %w", err)
		}
		s.file = f
		s.writer = sink.NewWriter(f)
		s.multi = append(s.multi, s.writer)
	}

	// The exit dump needs every envelope; the debug endpoint only recent ones.
	switch {
	case keep:
		s.buffer = sink.NewBuffer()
	case cfg.Debug.ListenAddr != "":
		s.buffer = sink.NewBoundedBuffer(debugBufferSize)
	}
	if s.buffer != nil {
		s.multi = append(s.multi, s.buffer)
	}
	return s, nil
}

// closeQueues stops accepting envelopes. Queued Redis writes still drain.
func (s *sinkSet) closeQueues() {
	if s.writer != nil {
		_ = s.writer.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

func (s *sinkSet) close(logger zerolog.Logger) {
	s.closeQueues()
	if s.redis != nil {
		if err := s.redis.Shutdown(); err != nil {
			logger.Warn().Err(err).Msg("redis shutdown failed")
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			logger.Warn().Err(err).Msg("sink output close failed")
		}
	}
}
