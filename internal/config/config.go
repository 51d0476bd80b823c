// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"slices"
	"strings"
	"time"
)

// Experimental features toggled with enableExperimentalFeatures.
const (
	// FeatureResourceTiming emits resource events for timeline resource entries.
	FeatureResourceTiming = "resource_timing"
	// FeatureNetworkErrors reports failed requests as errors.
	FeatureNetworkErrors = "network_errors"
)

// Features answers feature-flag queries.
type Features interface {
	IsEnabled(flag string) bool
}

// Configuration is the complete SDK configuration.
type Configuration struct {
	ApplicationID string `yaml:"applicationId"`
	Service       string `yaml:"service,omitempty"`
	Env           string `yaml:"env,omitempty"`
	Version       string `yaml:"version,omitempty"`
	LogLevel      string `yaml:"logLevel,omitempty"`

	// Location is the page URL the SDK is attached to.
	Location string `yaml:"location"`
	Referrer string `yaml:"referrer,omitempty"`

	// IntakeURL is the collection endpoint; requests to it are never collected.
	IntakeURL string `yaml:"intakeUrl,omitempty"`

	EnableExperimentalFeatures []string `yaml:"enableExperimentalFeatures,omitempty"`
	AllowedTracingOrigins      []string `yaml:"allowedTracingOrigins,omitempty"`

	ResponseLengthLimit int           `yaml:"responseLengthLimit,omitempty"`
	KeepAliveInterval   time.Duration `yaml:"keepAliveInterval,omitempty"`

	Session SessionConfig `yaml:"session,omitempty"`
	Tracing TracingConfig `yaml:"tracing,omitempty"`
	Sink    SinkConfig    `yaml:"sink,omitempty"`
	Debug   DebugConfig   `yaml:"debug,omitempty"`
}

// SessionConfig bounds a session's lifetime.
type SessionConfig struct {
	ExpireDelay time.Duration `yaml:"expireDelay,omitempty"`
	MaxDuration time.Duration `yaml:"maxDuration,omitempty"`
}

// TracingConfig configures span export for traced requests.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty"`
	Exporter     string  `yaml:"exporter,omitempty"` // grpc or http
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
}

// SinkConfig selects where collected events go.
type SinkConfig struct {
	// Output is an NDJSON file path; "-" writes to stdout, "redis" queues into
	// Redis and "" keeps events in memory only.
	Output string      `yaml:"output,omitempty"`
	Redis  RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig configures the Redis hand-off sink.
type RedisConfig struct {
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
	ViewTTL  time.Duration `yaml:"viewTTL,omitempty"`
	Queue    int           `yaml:"queue,omitempty"`
}

// DebugConfig configures the debug HTTP server of the probe binary.
type DebugConfig struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
	// RateLimit is the per-client request budget per minute.
	RateLimit int `yaml:"rateLimit,omitempty"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Configuration {
	return Configuration{
		Service:             "rum-probe",
		Env:                 "production",
		LogLevel:            "info",
		Location:            "http://localhost/",
		ResponseLengthLimit: 32 * 1024,
		KeepAliveInterval:   5 * time.Minute,
		Session: SessionConfig{
			ExpireDelay: 15 * time.Minute,
			MaxDuration: 4 * time.Hour,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		Sink: SinkConfig{
			Redis: RedisConfig{
				Prefix: "rum",
				Queue:  1024,
			},
		},
		Debug: DebugConfig{
			ListenAddr: "127.0.0.1:9464",
			RateLimit:  120,
		},
	}
}

// IsEnabled reports whether flag is listed in enableExperimentalFeatures.
func (c Configuration) IsEnabled(flag string) bool {
	return slices.Contains(c.EnableExperimentalFeatures, flag)
}

// IsIntakeRequest reports whether rawURL targets the intake endpoint.
func (c Configuration) IsIntakeRequest(rawURL string) bool {
	return c.IntakeURL != "" && strings.HasPrefix(rawURL, c.IntakeURL)
}
