package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix prefixes every state key written to Redis.
const RedisKeyPrefix = "discord:rate_limit:"

// Store persists rate limit state by key. Get returns (nil, nil) when no
// state is known.
type Store interface {
	Get(ctx context.Context, key string) (*State, error)
	Set(ctx context.Context, key string, state *State) error
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[key]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, state *State) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = *state
	return nil
}

// RedisStore shares state between processes using the same bot token.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) (*State, error) {
	data, err := r.redis.Get(ctx, RedisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode rate limit state: %w", err)
	}
	return &state, nil
}

// Set implements Store. Entries expire shortly after the bucket resets.
func (r *RedisStore) Set(ctx context.Context, key string, state *State) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode rate limit state: %w", err)
	}

	ttl := state.TimeUntilReset() + time.Second
	if err := r.redis.Set(ctx, RedisKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
