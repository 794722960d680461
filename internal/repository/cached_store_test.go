package repository

import (
	"context"
	"testing"
	"time"

	"kisquote/internal/domain/models"
)

type countingStore struct {
	entries map[string]*models.CachedQuote
	gets    int
	puts    int
}

func (c *countingStore) GetMany(_ context.Context, tickers []string) (map[string]*models.CachedQuote, error) {
	c.gets++
	out := make(map[string]*models.CachedQuote)
	for _, t := range tickers {
		if e, ok := c.entries[t]; ok {
			out[t] = e
		}
	}
	return out, nil
}

func (c *countingStore) PutMany(_ context.Context, quotes []*models.CachedQuote) error {
	c.puts++
	for _, q := range quotes {
		c.entries[q.Ticker] = q
	}
	return nil
}

func (c *countingStore) Health(_ context.Context) error { return nil }
func (c *countingStore) Close() error                   { return nil }

func entry(ticker string, ttl time.Duration) *models.CachedQuote {
	return &models.CachedQuote{
		Quote: models.Quote{
			Ticker:        ticker,
			CurrentPrice:  1000,
			PreviousClose: 990,
			ObservedAt:    time.Now(),
		},
		ExpiresAt: time.Now().Add(ttl),
	}
}

func TestCachedStoreShortcutsRepeatReads(t *testing.T) {
	inner := &countingStore{entries: map[string]*models.CachedQuote{}}
	s := NewCachedPriceStore(inner, 100)
	defer s.Close()

	if err := s.PutMany(context.Background(), []*models.CachedQuote{entry("005930", time.Minute)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if inner.puts != 1 {
		t.Fatalf("write must reach the durable tier")
	}

	for i := 0; i < 3; i++ {
		got, err := s.GetMany(context.Background(), []string{"005930"})
		if err != nil || got["005930"] == nil {
			t.Fatalf("get %d: %v %v", i, got, err)
		}
	}
	if inner.gets != 0 {
		t.Fatalf("memory tier should absorb repeat reads, durable gets = %d", inner.gets)
	}
}

func TestCachedStoreFallsThroughToDurable(t *testing.T) {
	inner := &countingStore{entries: map[string]*models.CachedQuote{
		"000660": entry("000660", time.Minute),
	}}
	s := NewCachedPriceStore(inner, 100)
	defer s.Close()

	got, err := s.GetMany(context.Background(), []string{"000660", "035420"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["000660"] == nil {
		t.Fatalf("durable entry missing from result")
	}
	if _, ok := got["035420"]; ok {
		t.Fatalf("absent ticker must not appear")
	}
	if inner.gets != 1 {
		t.Fatalf("durable tier gets = %d, want 1", inner.gets)
	}

	// Second read for the warmed ticker stays in memory.
	if _, err := s.GetMany(context.Background(), []string{"000660"}); err != nil {
		t.Fatalf("get: %v", err)
	}
	if inner.gets != 1 {
		t.Fatalf("warmed read must not hit durable tier")
	}
}
