// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/metrics"
	"github.com/ManuGH/rumkit/internal/resilience"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultRedisQueue = 1024
	redisWriteTimeout = 2 * time.Second

	redisBreakerThreshold = 5
	redisBreakerReset     = 30 * time.Second
)

// RedisConfig holds the Redis hand-off configuration.
type RedisConfig struct {
	Addr     string        // Redis server address (host:port)
	Password string        // Redis password (optional)
	DB       int           // Redis database number
	Prefix   string        // key prefix, default "rumkit"
	ViewTTL  time.Duration // lifetime of view snapshot hashes, 0 keeps them
	Queue    int           // envelopes buffered before dropping
}

// Redis pushes envelopes to a Redis list for the transport process and keeps
// the latest version of every view as a flattened hash. Emit only enqueues;
// Run performs the writes.
type Redis struct {
	client  *redis.Client
	cfg     RedisConfig
	logger  zerolog.Logger
	queue   chan Envelope
	breaker *resilience.Breaker

	mu     sync.Mutex
	closed bool
}

// NewRedis connects to Redis and checks the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return newRedis(client, cfg), nil
}

func newRedis(client *redis.Client, cfg RedisConfig) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "rumkit"
	}
	if cfg.Queue <= 0 {
		cfg.Queue = defaultRedisQueue
	}
	// While Redis is unreachable envelopes are dropped instead of each
	// waiting out the write timeout.
	r := &Redis{
		client:  client,
		cfg:     cfg,
		logger:  xglog.WithComponent("sink.redis"),
		queue:   make(chan Envelope, cfg.Queue),
		breaker: resilience.New("sink.redis", redisBreakerThreshold, redisBreakerReset),
	}
	r.logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str("prefix", cfg.Prefix).
		Msg("redis sink ready")
	return r
}

// EventsKey is the list receiving JSON envelopes.
func (r *Redis) EventsKey() string { return r.cfg.Prefix + ":events" }

// ViewKey is the hash holding the latest snapshot of a view.
func (r *Redis) ViewKey(id string) string { return r.cfg.Prefix + ":view:" + id }

// Emit enqueues env. A full queue drops the envelope and reports an error.
func (r *Redis) Emit(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	select {
	case r.queue <- env:
		return nil
	default:
		return fmt.Errorf("redis queue full (%d)", cap(r.queue))
	}
}

// Run writes queued envelopes until ctx is done or Close drains the queue.
func (r *Redis) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-r.queue:
			if !ok {
				return nil
			}
			err := r.breaker.Execute(func() error { return r.write(ctx, env) })
			switch {
			case err == nil:
			case errors.Is(err, resilience.ErrCircuitOpen):
				metrics.IncSinkError("redis")
				r.logger.Debug().Str(xglog.FieldEventType, string(env.Type)).Msg("redis unavailable, envelope dropped")
			default:
				metrics.IncSinkError("redis")
				r.logger.Warn().Err(err).Str(xglog.FieldEventType, string(env.Type)).Msg("redis write failed")
			}
		}
	}
}

func (r *Redis) write(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, redisWriteTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.EventsKey(), data)
	if v, ok := env.Event.(rumevent.ViewEvent); ok {
		fields, err := FormEntries(v)
		if err != nil {
			return fmt.Errorf("flatten view: %w", err)
		}
		values := make(map[string]interface{}, len(fields))
		for k, f := range fields {
			values[k] = f
		}
		key := r.ViewKey(v.View.ID)
		// Replace the hash so fields absent from the newer version do not linger.
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		if r.cfg.ViewTTL > 0 {
			pipe.Expire(ctx, key, r.cfg.ViewTTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Close stops accepting envelopes and lets Run drain the queue.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.queue)
	return nil
}

// Shutdown closes the Redis connection. Call it after Run returned.
func (r *Redis) Shutdown() error {
	return r.client.Close()
}
