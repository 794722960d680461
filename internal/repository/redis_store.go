package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kisquote/internal/domain/models"
	"kisquote/pkg/cache"
)

const (
	tokenKey    = "token:current"
	priceKeyPfx = "price"
)

// RedisTokenStore persists the single provider token in Redis. The Redis
// TTL mirrors the token's own expiry so stale tokens vanish on their own.
type RedisTokenStore struct {
	cache *cache.RedisCache
}

// NewRedisTokenStore creates a Redis-backed token store.
func NewRedisTokenStore(c *cache.RedisCache) *RedisTokenStore {
	return &RedisTokenStore{cache: c}
}

func (s *RedisTokenStore) Load(ctx context.Context) (*models.Token, error) {
	var token models.Token
	if err := s.cache.Get(ctx, tokenKey, &token); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis token load: %w", err)
	}
	return &token, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, token *models.Token) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, tokenKey, token, ttl); err != nil {
		return fmt.Errorf("redis token save: %w", err)
	}
	return nil
}

// quoteCache is the slice of the cache client the price store needs.
type quoteCache interface {
	cache.Service
	Ping(ctx context.Context) error
	Close() error
}

// RedisPriceStore persists per-ticker quote snapshots in Redis, one key per
// ticker so writes stay independent.
type RedisPriceStore struct {
	cache quoteCache
}

// NewRedisPriceStore creates a Redis-backed price store.
func NewRedisPriceStore(c *cache.RedisCache) *RedisPriceStore {
	return &RedisPriceStore{cache: c}
}

func (s *RedisPriceStore) GetMany(ctx context.Context, tickers []string) (map[string]*models.CachedQuote, error) {
	keys := make([]string, len(tickers))
	for i, t := range tickers {
		keys[i] = cache.GenerateKey(priceKeyPfx, t)
	}

	typed, err := cache.MGetTyped[models.CachedQuote](ctx, s.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("redis price get: %w", err)
	}

	out := make(map[string]*models.CachedQuote, len(typed))
	for i, t := range tickers {
		if entry, ok := typed[keys[i]]; ok {
			e := entry
			out[t] = &e
		}
	}
	return out, nil
}

func (s *RedisPriceStore) PutMany(ctx context.Context, quotes []*models.CachedQuote) error {
	// Each entry carries its own deadline, so each key gets its own TTL.
	for _, q := range quotes {
		ttl := time.Until(q.ExpiresAt)
		if ttl <= 0 {
			continue
		}
		if err := s.cache.Set(ctx, cache.GenerateKey(priceKeyPfx, q.Ticker), q, ttl); err != nil {
			return fmt.Errorf("redis price put %s: %w", q.Ticker, err)
		}
	}
	return nil
}

func (s *RedisPriceStore) Health(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

func (s *RedisPriceStore) Close() error {
	return s.cache.Close()
}
