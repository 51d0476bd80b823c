// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// rumprobe attaches the RUM SDK to a synthetic page and drives requests
// against real endpoints, forwarding the collected events to the configured
// sinks.
//
// Usage:
//
//	rumprobe -config rum.yaml -target https://api.example.com/health -every 30s
//	rumprobe -target https://api.example.com/ -duration 2m -dump events.ndjson
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/config"
	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/rum"
	"github.com/ManuGH/rumkit/internal/tracing"
	"github.com/ManuGH/rumkit/internal/version"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type options struct {
	configPath string
	targets    stringList
	every      time.Duration
	duration   time.Duration
	dumpPath   string
}

func main() {
	var opts options
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&opts.configPath, "config", "", "path to config file (YAML)")
	flag.Var(&opts.targets, "target", "URL requested on every probe round (repeatable)")
	flag.DurationVar(&opts.every, "every", 30*time.Second, "interval between probe rounds")
	flag.DurationVar(&opts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	flag.StringVar(&opts.dumpPath, "dump", "", "write every collected event to this NDJSON file on exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s, mode: %s)\n", version.Version, version.Commit, version.Date, version.BuildMode)
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	// Logs go to stderr: stdout may carry the NDJSON event stream.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Output:  os.Stderr,
		Service: "rumprobe",
		Version: version.Version,
	})
	logger := xglog.WithComponent("rumprobe")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(strings.TrimSpace(opts.configPath))
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", opts.configPath).
			Msg("failed to load configuration")
	}
	xglog.Reconfigure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  os.Stderr,
		Service: cfg.Service,
		Version: version.Version,
	})
	logger = xglog.WithComponent("rumprobe")

	if err := run(ctx, config.NewHolder(cfg, loader), opts); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Str(xglog.FieldEvent, "rumprobe.failed").Msg("probe stopped with error")
	}
	logger.Info().Str(xglog.FieldEvent, "rumprobe.exit").Msg("probe stopped")
}

func run(ctx context.Context, holder *config.Holder, opts options) error {
	logger := xglog.WithComponent("rumprobe")
	cfg := holder.Get()

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	provider, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Service,
		ServiceVersion: version.Version,
		Environment:    cfg.Env,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	loop := browser.NewLoop()
	native := browser.NewNativeMethods(loop, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   30 * time.Second,
	})
	defer native.Close()
	platform, err := browser.NewPlatform(cfg.Location, native, browser.WithLoop(loop))
	if err != nil {
		return fmt.Errorf("platform: %w", err)
	}

	sinks, err := openSinks(ctx, cfg, opts.dumpPath != "")
	if err != nil {
		return err
	}
	defer sinks.close(logger)

	r, err := rum.Start(ctx, rum.Options{
		Config:   cfg,
		Platform: platform,
		Sink:     sinks.multi,
		Tracer:   provider.Tracer("github.com/ManuGH/rumkit"),
	})
	if err != nil {
		return fmt.Errorf("start rum: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := holder.StartWatcher(gctx); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
	}
	defer holder.Stop()
	reloaded := make(chan config.Configuration, 1)
	holder.RegisterListener(reloaded)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case next := <-reloaded:
				xglog.Reconfigure(xglog.Config{Level: next.LogLevel, Output: os.Stderr, Service: next.Service, Version: version.Version})
			}
		}
	})

	// The loop owns the SDK: stopping happens on it once the run ends, so
	// the final view version is emitted before the sinks close.
	g.Go(func() error {
		err := loop.Run(gctx)
		native.Close()
		r.Stop()
		sinks.closeQueues()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})

	if sinks.redis != nil {
		g.Go(func() error {
			return sinks.redis.Run(context.WithoutCancel(gctx))
		})
	}

	if cfg.Debug.ListenAddr != "" {
		srv := &http.Server{
			Addr:              cfg.Debug.ListenAddr,
			Handler:           newRouter(routerDeps{buffer: sinks.buffer, rateLimit: cfg.Debug.RateLimit}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str(xglog.FieldEvent, "debug.listen").Str("addr", srv.Addr).Msg("debug server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	p := newProber(loop, platform, opts.targets, opts.every)
	g.Go(func() error {
		p.run(gctx)
		return nil
	})

	err = g.Wait()
	loop.Close()

	if opts.dumpPath != "" {
		if derr := writeDump(opts.dumpPath, sinks.buffer.Envelopes()); derr != nil {
			return errors.Join(err, derr)
		}
		logger.Info().Str(xglog.FieldEvent, "dump.written").Str("path", opts.dumpPath).Msg("event dump written")
	}
	return err
}
