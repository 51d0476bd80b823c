// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"time"

	"github.com/ManuGH/rumkit/internal/browser"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/rs/zerolog"
)

// prober issues one GET per target on every round. Requests are created on
// the loop so they go through whatever request methods the SDK installed.
type prober struct {
	loop     *browser.Loop
	platform *browser.Platform
	targets  []string
	every    time.Duration
	logger   zerolog.Logger
}

func newProber(loop *browser.Loop, platform *browser.Platform, targets []string, every time.Duration) *prober {
	return &prober{
		loop:     loop,
		platform: platform,
		targets:  targets,
		every:    every,
		logger:   xglog.WithComponent("prober"),
	}
}

func (p *prober) run(ctx context.Context) {
	if len(p.targets) == 0 {
		p.logger.Info().Str(xglog.FieldEvent, "prober.idle").Msg("no targets configured")
		return
	}

	p.loop.Post(p.round)
	if p.every <= 0 {
		return
	}
	ticker := time.NewTicker(p.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.loop.Post(p.round)
		}
	}
}

// round must run on the loop.
func (p *prober) round() {
	for _, target := range p.targets {
		x := p.platform.NewXHR()
		if err := x.Open("GET", target); err != nil {
			p.logger.Warn().Err(err).Str(xglog.FieldURL, target).Msg("open failed")
			continue
		}
		if err := x.Send(nil); err != nil {
			p.logger.Warn().Err(err).Str(xglog.FieldURL, target).Msg("send failed")
		}
	}
}
