// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
applicationId: app-1
location: https://shop.example.com/cart
intakeUrl: https://intake.example.com/
enableExperimentalFeatures: [resource_timing]
allowedTracingOrigins:
  - https://api.example.com
session:
  expireDelay: 10m
sink:
  redis:
    addr: localhost:6379
    viewTTL: 1h
`)
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "app-1", cfg.ApplicationID)
	assert.Equal(t, "https://shop.example.com/cart", cfg.Location)
	assert.True(t, cfg.IsEnabled(FeatureResourceTiming))
	assert.Equal(t, []string{"https://api.example.com"}, cfg.AllowedTracingOrigins)
	assert.Equal(t, 10*time.Minute, cfg.Session.ExpireDelay)
	assert.Equal(t, 4*time.Hour, cfg.Session.MaxDuration, "unset keys keep defaults")
	assert.Equal(t, "rum", cfg.Sink.Redis.Prefix)
	assert.Equal(t, time.Hour, cfg.Sink.Redis.ViewTTL)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "location: https://a.example.com/\ntrackInteractions: true\n")
	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "service: a\n---\nservice: b\n")
	_, err := NewLoader(path).Load()
	assert.ErrorIs(t, err, ErrMultipleDocuments)
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadRejectsNonYAMLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rum.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "service: from-file\nlogLevel: debug\n")
	t.Setenv("RUM_SERVICE", "from-env")
	t.Setenv("RUM_EXPERIMENTAL_FEATURES", "network_errors, resource_timing,")
	t.Setenv("RUM_TRACING_SAMPLING_RATE", "0.25")
	t.Setenv("RUM_SESSION_EXPIRE_DELAY", "not-a-duration")

	l := NewLoader(path)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Service)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{FeatureNetworkErrors, FeatureResourceTiming}, cfg.EnableExperimentalFeatures)
	assert.InDelta(t, 0.25, cfg.Tracing.SamplingRate, 1e-9)
	assert.Equal(t, 15*time.Minute, cfg.Session.ExpireDelay, "invalid values fall back")
	assert.Contains(t, l.ConsumedEnvKeys, "RUM_REDIS_ADDR")
}

func TestLoadFailsValidation(t *testing.T) {
	t.Setenv("RUM_LOCATION", "ftp://files.example.com/")
	_, err := NewLoader("").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestParseBool(t *testing.T) {
	t.Setenv("RUM_X", "YES")
	assert.True(t, ParseBool("RUM_X", false))
	t.Setenv("RUM_X", "0")
	assert.False(t, ParseBool("RUM_X", true))
	t.Setenv("RUM_X", "maybe")
	assert.True(t, ParseBool("RUM_X", true))
	t.Setenv("RUM_X", "")
	assert.True(t, ParseBool("RUM_X", true))
}
