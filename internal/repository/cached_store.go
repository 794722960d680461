package repository

import (
	"context"
	"time"

	"kisquote/internal/domain/models"
	"kisquote/internal/domain/repository"
	"kisquote/pkg/cache"
)

// CachedPriceStore layers an in-process memory cache in front of a durable
// PriceStore. The memory tier only shortcuts reads; the durable tier stays
// the source of truth across processes.
type CachedPriceStore struct {
	inner  repository.PriceStore
	memory *cache.MemoryCache
}

// NewCachedPriceStore wraps inner with a memory tier of maxSize entries.
func NewCachedPriceStore(inner repository.PriceStore, maxSize int) *CachedPriceStore {
	return &CachedPriceStore{
		inner:  inner,
		memory: cache.NewMemoryCache(cache.WithMemoryMaxSize(maxSize)),
	}
}

func (s *CachedPriceStore) GetMany(ctx context.Context, tickers []string) (map[string]*models.CachedQuote, error) {
	keys := make([]string, len(tickers))
	for i, t := range tickers {
		keys[i] = cache.GenerateKey(priceKeyPfx, t)
	}

	out := make(map[string]*models.CachedQuote, len(tickers))
	remaining := make([]string, 0, len(tickers))

	hits, err := cache.MGetTyped[models.CachedQuote](ctx, s.memory, keys...)
	if err != nil {
		hits = nil
	}
	for i, t := range tickers {
		if entry, ok := hits[keys[i]]; ok {
			e := entry
			out[t] = &e
			continue
		}
		remaining = append(remaining, t)
	}

	if len(remaining) == 0 {
		return out, nil
	}

	durable, err := s.inner.GetMany(ctx, remaining)
	if err != nil {
		// Memory hits are still worth returning.
		if len(out) > 0 {
			return out, nil
		}
		return nil, err
	}
	for t, entry := range durable {
		out[t] = entry
		if ttl := time.Until(entry.ExpiresAt); ttl > 0 {
			_ = s.memory.Set(ctx, cache.GenerateKey(priceKeyPfx, t), entry, ttl)
		}
	}
	return out, nil
}

func (s *CachedPriceStore) PutMany(ctx context.Context, quotes []*models.CachedQuote) error {
	for _, q := range quotes {
		if ttl := time.Until(q.ExpiresAt); ttl > 0 {
			_ = s.memory.Set(ctx, cache.GenerateKey(priceKeyPfx, q.Ticker), q, ttl)
		}
	}
	return s.inner.PutMany(ctx, quotes)
}

func (s *CachedPriceStore) Health(ctx context.Context) error {
	return s.inner.Health(ctx)
}

func (s *CachedPriceStore) Close() error {
	_ = s.memory.Close()
	return s.inner.Close()
}
