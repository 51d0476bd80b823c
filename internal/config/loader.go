// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty path loads defaults
// and environment only.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath:      configPath,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the watched configuration file.
func (l *Loader) Path() string {
	return l.configPath
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order: Defaults -> Parse File (Strict) -> Apply Env -> Validate.
func (l *Loader) Load() (Configuration, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file over cfg with STRICT parsing. Keys absent
// from the file keep their current value.
func (l *Loader) loadFile(path string, cfg *Configuration) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *Configuration) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *Configuration) {
	cfg.ApplicationID = l.envString(EnvPrefix+"APPLICATION_ID", cfg.ApplicationID)
	cfg.Service = l.envString(EnvPrefix+"SERVICE", cfg.Service)
	cfg.Env = l.envString(EnvPrefix+"ENV", cfg.Env)
	cfg.Version = l.envString(EnvPrefix+"VERSION", cfg.Version)
	cfg.LogLevel = l.envString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.Location = l.envString(EnvPrefix+"LOCATION", cfg.Location)
	cfg.Referrer = l.envString(EnvPrefix+"REFERRER", cfg.Referrer)
	cfg.IntakeURL = l.envString(EnvPrefix+"INTAKE_URL", cfg.IntakeURL)
	cfg.EnableExperimentalFeatures = l.envList(EnvPrefix+"EXPERIMENTAL_FEATURES", cfg.EnableExperimentalFeatures)
	cfg.AllowedTracingOrigins = l.envList(EnvPrefix+"TRACING_ORIGINS", cfg.AllowedTracingOrigins)
	cfg.ResponseLengthLimit = l.envInt(EnvPrefix+"RESPONSE_LENGTH_LIMIT", cfg.ResponseLengthLimit)
	cfg.KeepAliveInterval = l.envDuration(EnvPrefix+"KEEP_ALIVE_INTERVAL", cfg.KeepAliveInterval)

	cfg.Session.ExpireDelay = l.envDuration(EnvPrefix+"SESSION_EXPIRE_DELAY", cfg.Session.ExpireDelay)
	cfg.Session.MaxDuration = l.envDuration(EnvPrefix+"SESSION_MAX_DURATION", cfg.Session.MaxDuration)

	cfg.Tracing.Enabled = l.envBool(EnvPrefix+"TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString(EnvPrefix+"TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString(EnvPrefix+"TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat(EnvPrefix+"TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)

	cfg.Sink.Output = l.envString(EnvPrefix+"SINK_OUTPUT", cfg.Sink.Output)
	cfg.Sink.Redis.Addr = l.envString(EnvPrefix+"REDIS_ADDR", cfg.Sink.Redis.Addr)
	cfg.Sink.Redis.Password = l.envString(EnvPrefix+"REDIS_PASSWORD", cfg.Sink.Redis.Password)
	cfg.Sink.Redis.DB = l.envInt(EnvPrefix+"REDIS_DB", cfg.Sink.Redis.DB)
	cfg.Sink.Redis.Prefix = l.envString(EnvPrefix+"REDIS_PREFIX", cfg.Sink.Redis.Prefix)
	cfg.Sink.Redis.ViewTTL = l.envDuration(EnvPrefix+"REDIS_VIEW_TTL", cfg.Sink.Redis.ViewTTL)
	cfg.Sink.Redis.Queue = l.envInt(EnvPrefix+"REDIS_QUEUE", cfg.Sink.Redis.Queue)

	cfg.Debug.ListenAddr = l.envString(EnvPrefix+"DEBUG_LISTEN", cfg.Debug.ListenAddr)
	cfg.Debug.RateLimit = l.envInt(EnvPrefix+"DEBUG_RATE_LIMIT", cfg.Debug.RateLimit)
}
