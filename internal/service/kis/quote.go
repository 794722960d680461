package kis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"kisquote/internal/domain/models"
	xhttp "kisquote/pkg/http"
)

type priceResponse struct {
	RtCd   string `json:"rt_cd"`
	MsgCd  string `json:"msg_cd"`
	Msg1   string `json:"msg1"`
	Output struct {
		StckPrpr string `json:"stck_prpr"` // current price
		StckSdpr string `json:"stck_sdpr"` // previous close
		PrdyCtrt string `json:"prdy_ctrt"` // change rate, percent
		AcmlVol  string `json:"acml_vol"`  // accumulated volume
	} `json:"output"`
}

// FetchOne retrieves the current quote for one ticker. The returned Quote
// keeps the caller's original (possibly prefixed) ticker.
func (c *Client) FetchOne(ctx context.Context, ticker string) (*models.Quote, error) {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp priceResponse
	err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + pricePath,
		Headers: c.authHeaders(token, trIDPrice),
		QueryParams: map[string]string{
			"FID_COND_MRKT_DIV_CODE": "J",
			"FID_INPUT_ISCD":         CleanTicker(ticker),
		},
	}, &resp)
	if err != nil {
		c.metrics.RecordProviderCall("inquire-price", "error")
		return nil, fmt.Errorf("kis: quote %s: %s", ticker, providerMessage(err))
	}
	if resp.RtCd != "0" {
		c.metrics.RecordProviderCall("inquire-price", "error")
		return nil, fmt.Errorf("kis: quote %s: %s %s", ticker, resp.MsgCd, resp.Msg1)
	}

	q, err := c.parseQuote(ticker, &resp)
	if err != nil {
		c.metrics.RecordProviderCall("inquire-price", "error")
		return nil, err
	}

	c.metrics.RecordProviderCall("inquire-price", "ok")
	return q, nil
}

func (c *Client) parseQuote(ticker string, resp *priceResponse) (*models.Quote, error) {
	price, err := parseInt(resp.Output.StckPrpr)
	if err != nil {
		return nil, fmt.Errorf("kis: quote %s: bad stck_prpr %q", ticker, resp.Output.StckPrpr)
	}
	prev, err := parseInt(resp.Output.StckSdpr)
	if err != nil {
		return nil, fmt.Errorf("kis: quote %s: bad stck_sdpr %q", ticker, resp.Output.StckSdpr)
	}
	rate, err := parseFloat(resp.Output.PrdyCtrt)
	if err != nil {
		return nil, fmt.Errorf("kis: quote %s: bad prdy_ctrt %q", ticker, resp.Output.PrdyCtrt)
	}
	volume, err := parseInt(resp.Output.AcmlVol)
	if err != nil {
		return nil, fmt.Errorf("kis: quote %s: bad acml_vol %q", ticker, resp.Output.AcmlVol)
	}

	return &models.Quote{
		Ticker:        ticker,
		CurrentPrice:  price,
		PreviousClose: prev,
		ChangeRate:    rate,
		Volume:        volume,
		ObservedAt:    c.now(),
	}, nil
}

// FetchMany fans out one FetchOne per ticker and partitions by ticker key.
// Every requested ticker lands in exactly one of the two maps; a single
// failure never aborts its siblings.
func (c *Client) FetchMany(ctx context.Context, tickers []string) *models.BatchResult {
	type item struct {
		ticker string
		quote  *models.Quote
		err    error
	}

	items := make([]item, len(tickers))
	var wg sync.WaitGroup
	for i, t := range tickers {
		wg.Add(1)
		go func(i int, t string) {
			defer wg.Done()
			q, err := c.FetchOne(ctx, t)
			items[i] = item{ticker: t, quote: q, err: err}
		}(i, t)
	}
	wg.Wait()

	result := models.NewBatchResult(len(tickers))
	for _, it := range items {
		if it.err != nil {
			result.Failed[it.ticker] = it.err.Error()
			continue
		}
		result.Succeeded[it.ticker] = it.quote
	}
	return result
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
