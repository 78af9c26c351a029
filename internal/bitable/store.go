package bitable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore persists the tenant access token between requests
type TokenStore interface {
	Get(ctx context.Context) (Token, bool, error)
	Set(ctx context.Context, token Token, now time.Time) error
	Delete(ctx context.Context) error
}

// MemoryTokenStore keeps the token in process memory
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token Token
	ok    bool
}

// NewMemoryTokenStore creates an empty in-memory store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Get(context.Context) (Token, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.ok, nil
}

func (s *MemoryTokenStore) Set(_ context.Context, token Token, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.ok = true
	return nil
}

func (s *MemoryTokenStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = Token{}
	s.ok = false
	return nil
}

// DefaultTokenKey is the Redis key holding the shared token
const DefaultTokenKey = "showroom:feishu:tenant_token"

// RedisTokenStore shares one token between service instances
type RedisTokenStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisTokenStore creates a store under key (DefaultTokenKey when empty)
func NewRedisTokenStore(client redis.Cmdable, key string) *RedisTokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &RedisTokenStore{client: client, key: key}
}

func (s *RedisTokenStore) Get(ctx context.Context) (Token, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("failed to read token: %w", err)
	}

	var token Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return Token{}, false, fmt.Errorf("failed to decode token: %w", err)
	}
	return token, true, nil
}

// Set stores the token with a TTL matching its remaining lifetime
func (s *RedisTokenStore) Set(ctx context.Context, token Token, now time.Time) error {
	ttl := token.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return s.Delete(ctx)
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
