/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus layers an optional distributed transport over
// internal/events.Bus so the store (C10) can fan events out across
// multiple mixer-core instances. It degrades to the in-memory bus alone
// whenever the transport is unavailable, never returning a hard failure
// from Publish/Subscribe.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/gesturedeck/internal/events"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// DisableOnError circuit-breaks to the in-memory fallback after a
	// publish/subscribe error, matching internal/cache's behavior.
	DisableOnError bool
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		PoolSize:       10,
		MinIdleConns:   2,
		DialTimeout:    5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
		DisableOnError: true,
	}
}

// RedisBus is a Redis-backed event bus for distributed deployments. Every
// local Publish fans out both to local subscribers (via the embedded
// in-memory events.Bus) and, when Redis is available, to a
// node-tagged Redis Pub/Sub channel so sibling instances receive it too.
type RedisBus struct {
	logger zerolog.Logger
	nodeID string
	local  *events.Bus

	client *redis.Client

	mu       sync.RWMutex
	disabled bool
	cfg      RedisConfig

	ctx    context.Context
	cancel context.CancelFunc
}

const redisChannelPrefix = "gesturedeck:events:"

// NewRedisBus connects to Redis and starts the cross-instance relay.
// Exactly like internal/cache.New, a failed ping does not return an
// error: it logs a warning and leaves the bus running in-memory-only.
func NewRedisBus(addr string, cfg RedisConfig, logger zerolog.Logger) (*RedisBus, error) {
	ctx, cancel := context.WithCancel(context.Background())
	rb := &RedisBus{
		logger: logger,
		nodeID: uuid.NewString(),
		local:  events.NewBus(),
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if addr == "" {
		rb.disabled = true
		cancel()
		return rb, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("redis event bus unavailable, using in-memory fallback")
		rb.disabled = true
		cancel()
		return rb, nil
	}

	rb.client = client
	go rb.relayFromRedis()

	return rb, nil
}

// IsAvailable reports whether the distributed transport is active. The
// bus remains fully usable either way: this only affects whether events
// cross process boundaries.
func (rb *RedisBus) IsAvailable() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return !rb.disabled && rb.client != nil
}

// Subscribe registers a local subscriber for an event type.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	return rb.local.Subscribe(eventType)
}

// Unsubscribe removes a local subscriber.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)
}

// Publish delivers payload to local subscribers immediately, then
// mirrors it to Redis for sibling instances when available.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	if !rb.IsAvailable() {
		return
	}

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Debug().Err(err).Msg("marshal event bus message")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, rb.cfg.WriteTimeout)
	defer cancel()
	if err := rb.client.Publish(ctx, redisChannelPrefix+string(eventType), data).Err(); err != nil {
		rb.handleError(err)
	}
}

// Close stops the relay goroutine and closes the Redis connection.
func (rb *RedisBus) Close() error {
	rb.cancel()
	if rb.client != nil {
		return rb.client.Close()
	}
	return nil
}

func (rb *RedisBus) handleError(err error) {
	if err == nil {
		return
	}
	rb.logger.Debug().Err(err).Msg("redis event bus operation failed")
	if rb.cfg.DisableOnError {
		rb.mu.Lock()
		rb.disabled = true
		rb.mu.Unlock()
		rb.logger.Warn().Msg("redis event bus disabled after error, falling back to in-memory only")
	}
}

// relayFromRedis pattern-subscribes to every channel under
// redisChannelPrefix and re-publishes incoming messages from sibling nodes
// onto the local bus, skipping messages this node itself published.
func (rb *RedisBus) relayFromRedis() {
	pubsub := rb.client.PSubscribe(rb.ctx, redisChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			parsed, err := unmarshalMessage([]byte(msg.Payload))
			if err != nil {
				rb.logger.Debug().Err(err).Msg("unmarshal redis event bus message")
				continue
			}
			if parsed.NodeID == rb.nodeID {
				continue
			}
			rb.local.Publish(parsed.EventType, parsed.Payload)
		}
	}
}

type redisMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := redisMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nodeID,
	}
	return json.Marshal(msg)
}

func unmarshalMessage(data []byte) (*redisMessage, error) {
	var msg redisMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal redis event bus message: %w", err)
	}
	return &msg, nil
}
