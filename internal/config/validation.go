// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"

	"github.com/ManuGH/rumkit/internal/validate"
)

var knownFeatures = []string{FeatureResourceTiming, FeatureNetworkErrors}

// Validate reports every invalid field of cfg in one error.
func Validate(cfg Configuration) error {
	v := validate.New()

	v.URL("location", cfg.Location, "http", "https")
	if cfg.IntakeURL != "" {
		v.URL("intakeUrl", cfg.IntakeURL, "http", "https")
	}
	v.LogLevel("logLevel", cfg.LogLevel)

	for i, f := range cfg.EnableExperimentalFeatures {
		v.OneOf(fmt.Sprintf("enableExperimentalFeatures[%d]", i), f, knownFeatures...)
	}
	for i, o := range cfg.AllowedTracingOrigins {
		v.Origin(fmt.Sprintf("allowedTracingOrigins[%d]", i), o)
	}

	v.Positive("responseLengthLimit", cfg.ResponseLengthLimit)
	v.PositiveDuration("keepAliveInterval", cfg.KeepAliveInterval)
	v.PositiveDuration("session.expireDelay", cfg.Session.ExpireDelay)
	v.PositiveDuration("session.maxDuration", cfg.Session.MaxDuration)
	if cfg.Session.MaxDuration < cfg.Session.ExpireDelay {
		v.Add("session.maxDuration", cfg.Session.MaxDuration, "must not be shorter than session.expireDelay")
	}

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, "grpc", "http")
		v.NotBlank("tracing.endpoint", cfg.Tracing.Endpoint)
	}
	v.FloatRange("tracing.samplingRate", cfg.Tracing.SamplingRate, 0, 1)

	if cfg.Sink.Output == "redis" {
		v.NotBlank("sink.redis.addr", cfg.Sink.Redis.Addr)
	}
	if cfg.Sink.Redis.Addr != "" {
		v.NotBlank("sink.redis.prefix", cfg.Sink.Redis.Prefix)
		v.IntRange("sink.redis.db", cfg.Sink.Redis.DB, 0, 15)
		v.Positive("sink.redis.queue", cfg.Sink.Redis.Queue)
		if cfg.Sink.Redis.ViewTTL < 0 {
			v.Add("sink.redis.viewTTL", cfg.Sink.Redis.ViewTTL, "cannot be negative")
		}
	}

	if cfg.Debug.ListenAddr != "" {
		v.Positive("debug.rateLimit", cfg.Debug.RateLimit)
	}

	return v.Err()
}
