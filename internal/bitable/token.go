package bitable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRefreshMargin is how long before provider expiry a token is renewed
const DefaultRefreshMargin = 5 * time.Minute

// Token is a tenant access token and the moment the provider stops honouring it
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RefreshFunc obtains a new token and its lifetime from the provider
type RefreshFunc func(ctx context.Context) (value string, ttl time.Duration, err error)

// TokenCache hands out the cached token until it is about to expire, then
// refreshes it. Refreshes are serialized.
type TokenCache struct {
	store   TokenStore
	refresh RefreshFunc
	margin  time.Duration
	logger  *zap.Logger

	mu sync.Mutex
}

// NewTokenCache creates a cache over store. A nil store keeps tokens in memory.
func NewTokenCache(store TokenStore, refresh RefreshFunc, margin time.Duration, logger *zap.Logger) *TokenCache {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	if margin < 0 {
		margin = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenCache{
		store:   store,
		refresh: refresh,
		margin:  margin,
		logger:  logger.With(zap.String("component", "token_cache")),
	}
}

// GetOrRefresh returns a token valid at now, refreshing it when the cached one
// is missing or within the refresh margin of expiry.
func (c *TokenCache) GetOrRefresh(ctx context.Context, now time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok, err := c.store.Get(ctx)
	if err != nil {
		c.logger.Warn("Token store read failed, refreshing", zap.Error(err))
		ok = false
	}
	if ok && c.fresh(cached, now) {
		return cached.Value, nil
	}

	value, ttl, err := c.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to refresh tenant access token: %w", err)
	}
	if value == "" {
		return "", errors.New("provider returned an empty tenant access token")
	}

	token := Token{Value: value, ExpiresAt: now.Add(ttl)}
	if err := c.store.Set(ctx, token, now); err != nil {
		c.logger.Warn("Token store write failed", zap.Error(err))
	}

	c.logger.Debug("Tenant access token refreshed", zap.Time("expires_at", token.ExpiresAt))
	return token.Value, nil
}

// Invalidate drops the cached token so the next call refreshes
func (c *TokenCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(ctx)
}

func (c *TokenCache) fresh(t Token, now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt.Add(-c.margin))
}
