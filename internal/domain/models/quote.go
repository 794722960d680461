package models

import "time"

// Quote is a single provider snapshot for a ticker. Prices are KRW, so
// integer fields are exact.
type Quote struct {
	Ticker        string    `json:"ticker" db:"ticker"`
	CurrentPrice  int64     `json:"current_price" db:"current_price"`
	PreviousClose int64     `json:"previous_close" db:"previous_close"`
	ChangeRate    float64   `json:"change_rate" db:"change_rate"`
	Volume        int64     `json:"volume" db:"volume"`
	ObservedAt    time.Time `json:"observed_at" db:"timestamp"`
}

// Valid reports whether the snapshot satisfies the positive-price invariant.
// Invalid quotes must never be cached or returned as succeeded.
func (q *Quote) Valid() bool {
	return q.CurrentPrice > 0 && q.PreviousClose > 0
}

// CachedQuote is a Quote plus its cache deadline. ExpiresAt is always
// derived from the market calendar, never a fixed constant.
type CachedQuote struct {
	Quote
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Fresh reports whether the entry is still servable at now.
func (c *CachedQuote) Fresh(now time.Time) bool {
	return c.ExpiresAt.After(now)
}

// Token is the provider bearer token with its conservative expiry.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token can still be used at now without
// re-validation against the provider.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && t.ExpiresAt.After(now)
}

// BatchResult partitions a batch lookup by ticker. The key union of both
// maps always equals the requested ticker set; no ticker is dropped.
type BatchResult struct {
	Succeeded map[string]*Quote `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
}

// NewBatchResult allocates both partitions sized for n tickers.
func NewBatchResult(n int) *BatchResult {
	return &BatchResult{
		Succeeded: make(map[string]*Quote, n),
		Failed:    make(map[string]string),
	}
}
