package kis

import (
	"context"
	"sync"
	"time"

	xhttp "kisquote/pkg/http"
	xlogger "kisquote/pkg/logger"
	"kisquote/pkg/util"
)

type dailyResponse struct {
	RtCd    string `json:"rt_cd"`
	MsgCd   string `json:"msg_cd"`
	Msg1    string `json:"msg1"`
	Output2 []struct {
		StckClpr string `json:"stck_clpr"` // closing price
	} `json:"output2"`
}

// FetchDailyClose looks up the closing price for one ticker on one date.
// Best-effort supplementary data: any failure reports absent, never errors.
func (c *Client) FetchDailyClose(ctx context.Context, ticker string, date time.Time) (int64, bool) {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		c.logger.Warn("daily close skipped, no token",
			xlogger.String("ticker", ticker), xlogger.Error(err))
		return 0, false
	}

	day := util.FormatYYYYMMDD(date)
	var resp dailyResponse
	err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + dailyPath,
		Headers: c.authHeaders(token, trIDDaily),
		QueryParams: map[string]string{
			"FID_COND_MRKT_DIV_CODE": "J",
			"FID_INPUT_ISCD":         CleanTicker(ticker),
			"FID_INPUT_DATE_1":       day,
			"FID_INPUT_DATE_2":       day,
			"FID_PERIOD_DIV_CODE":    "D",
			"FID_ORG_ADJ_PRC":        "0",
		},
	}, &resp)
	if err != nil {
		c.metrics.RecordProviderCall("inquire-daily-itemchartprice", "error")
		c.logger.Debug("daily close fetch failed",
			xlogger.String("ticker", ticker), xlogger.String("date", day), xlogger.Error(err))
		return 0, false
	}
	if resp.RtCd != "0" || len(resp.Output2) == 0 {
		c.metrics.RecordProviderCall("inquire-daily-itemchartprice", "error")
		return 0, false
	}

	px, err := parseInt(resp.Output2[0].StckClpr)
	if err != nil || px <= 0 {
		c.metrics.RecordProviderCall("inquire-daily-itemchartprice", "error")
		return 0, false
	}

	c.metrics.RecordProviderCall("inquire-daily-itemchartprice", "ok")
	return px, true
}

// FetchManyDailyClose fans out per-ticker close lookups for one date.
// Tickers with an absent result are omitted from the map.
func (c *Client) FetchManyDailyClose(ctx context.Context, tickers []string, date time.Time) map[string]int64 {
	type item struct {
		ticker string
		px     int64
		ok     bool
	}

	items := make([]item, len(tickers))
	var wg sync.WaitGroup
	for i, t := range tickers {
		wg.Add(1)
		go func(i int, t string) {
			defer wg.Done()
			v, ok := c.FetchDailyClose(ctx, t, date)
			items[i] = item{ticker: t, px: v, ok: ok}
		}(i, t)
	}
	wg.Wait()

	out := make(map[string]int64, len(tickers))
	for _, it := range items {
		if it.ok {
			out[it.ticker] = it.px
		}
	}
	return out
}
