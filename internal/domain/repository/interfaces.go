package repository

import (
	"context"
	"time"

	"kisquote/internal/domain/models"
)

// TokenStore persists the single provider token across processes. Reads and
// writes are best-effort: the token manager degrades to its memory slot when
// the store is unavailable.
type TokenStore interface {
	Load(ctx context.Context) (*models.Token, error)
	Save(ctx context.Context, token *models.Token) error
}

// PriceStore persists per-ticker quote snapshots with explicit expiry.
// GetMany returns whatever entries exist; callers decide freshness via
// CachedQuote.Fresh. PutMany writes are independent per ticker, last write
// wins, and each entry's own ExpiresAt governs its lifetime even when a
// batch mixes deadlines.
type PriceStore interface {
	GetMany(ctx context.Context, tickers []string) (map[string]*models.CachedQuote, error)
	PutMany(ctx context.Context, quotes []*models.CachedQuote) error
	Health(ctx context.Context) error
	Close() error
}

// QuoteFetcher is the provider-facing quote API.
type QuoteFetcher interface {
	FetchOne(ctx context.Context, ticker string) (*models.Quote, error)
	FetchMany(ctx context.Context, tickers []string) *models.BatchResult
	FetchDailyClose(ctx context.Context, ticker string, date time.Time) (int64, bool)
	FetchManyDailyClose(ctx context.Context, tickers []string, date time.Time) map[string]int64
}

// TokenProvider hands out a currently valid bearer token.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// Metrics records operational counters for the quote pipeline.
type Metrics interface {
	RecordCacheHit(n int)
	RecordCacheMiss(n int)
	RecordProviderCall(endpoint, outcome string)
	RecordTokenIssued()
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
