package models

// Requests for the quote HTTP endpoints. Defined in domain for consistency and reuse.

// QuotesRequest is the batch quote lookup. Tickers is a comma-separated
// list, capped at 10 per call to protect the upstream provider.
type QuotesRequest struct {
	Tickers string `query:"tickers" json:"tickers" validate:"required"`
}

// ClosesRequest is the daily-close lookup for a single trading date.
// Date is YYYYMMDD; when omitted it defaults to the previous business day.
type ClosesRequest struct {
	Tickers string `query:"tickers" json:"tickers" validate:"required"`
	Date    string `query:"date" json:"date" validate:"omitempty,len=8,numeric"`
}
