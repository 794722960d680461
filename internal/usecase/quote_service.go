package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kisquote/internal/domain/models"
	"kisquote/internal/domain/repository"
	"kisquote/internal/service/calendar"
	xlogger "kisquote/pkg/logger"
)

const writeBehindTimeout = 5 * time.Second

// QuoteService orchestrates cache lookups, provider fetches for misses,
// calendar-derived expiry, and partial-failure isolation across a batch.
type QuoteService struct {
	store    repository.PriceStore
	fetcher  repository.QuoteFetcher
	calendar *calendar.Calendar
	logger   *xlogger.Logger
	metrics  repository.Metrics
	now      func() time.Time

	writes sync.WaitGroup
}

// NewQuoteService creates a quote service.
func NewQuoteService(
	store repository.PriceStore,
	fetcher repository.QuoteFetcher,
	cal *calendar.Calendar,
	logger *xlogger.Logger,
	metrics repository.Metrics,
) *QuoteService {
	return &QuoteService{
		store:    store,
		fetcher:  fetcher,
		calendar: cal,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// GetBatch resolves quotes for every requested ticker. The result always
// covers the full input set: fresh cache entries and fetched quotes in
// Succeeded, everything else in Failed with a reason.
func (s *QuoteService) GetBatch(ctx context.Context, tickers []string) *models.BatchResult {
	start := s.now()
	defer func() {
		s.metrics.RecordLatency("get_batch", time.Since(start).Seconds())
	}()

	result := models.NewBatchResult(len(tickers))

	cached, err := s.store.GetMany(ctx, tickers)
	if err != nil {
		// Store trouble degrades to a full miss, never fails the batch.
		s.logger.Warn("price store read failed, treating all as misses", xlogger.Error(err))
		s.metrics.RecordError("price_store_read")
		cached = nil
	}

	now := s.now()
	misses := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if entry, ok := cached[t]; ok && entry.Fresh(now) {
			q := entry.Quote
			result.Succeeded[t] = &q
			continue
		}
		misses = append(misses, t)
	}
	s.metrics.RecordCacheHit(len(tickers) - len(misses))
	s.metrics.RecordCacheMiss(len(misses))

	if len(misses) == 0 {
		return result
	}

	fetched := s.fetcher.FetchMany(ctx, misses)
	for t, msg := range fetched.Failed {
		result.Failed[t] = msg
	}

	expiry := s.calendar.CacheExpiry(s.now())
	toCache := make([]*models.CachedQuote, 0, len(fetched.Succeeded))
	for t, q := range fetched.Succeeded {
		if !q.Valid() {
			result.Failed[t] = fmt.Sprintf(
				"invalid quote: non-positive price (current=%d previous=%d)",
				q.CurrentPrice, q.PreviousClose)
			s.metrics.RecordError("quote_validation")
			continue
		}
		result.Succeeded[t] = q
		toCache = append(toCache, &models.CachedQuote{Quote: *q, ExpiresAt: expiry})
	}

	if len(toCache) > 0 {
		s.writeBehind(toCache)
	}

	return result
}

// GetHistoricalClose passes through to the provider. Not cached: call
// volume is low and closes never change once the trading day ends.
func (s *QuoteService) GetHistoricalClose(ctx context.Context, tickers []string, date time.Time) map[string]int64 {
	return s.fetcher.FetchManyDailyClose(ctx, tickers, date)
}

// writeBehind persists quotes off the request path. The caller already has
// the quotes in memory, so a failed write only costs a later refetch.
func (s *QuoteService) writeBehind(quotes []*models.CachedQuote) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeBehindTimeout)
		defer cancel()
		if err := s.store.PutMany(ctx, quotes); err != nil {
			s.logger.Warn("price cache write failed",
				xlogger.Int("quotes", len(quotes)), xlogger.Error(err))
			s.metrics.RecordError("price_store_write")
		}
	}()
}

// Flush waits for in-flight cache writes. Used on shutdown and in tests.
func (s *QuoteService) Flush() {
	s.writes.Wait()
}
