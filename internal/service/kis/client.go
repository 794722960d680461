package kis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kisquote/internal/domain/repository"
	xhttp "kisquote/pkg/http"
	xlogger "kisquote/pkg/logger"
)

const (
	tokenPath = "/oauth2/tokenP"
	pricePath = "/uapi/domestic-stock/v1/quotations/inquire-price"
	dailyPath = "/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice"

	trIDPrice = "FHKST01010100"
	trIDDaily = "FHKST03010100"

	// Fallback when the provider omits expires_in.
	defaultTokenTTL = 24 * time.Hour
)

// ErrMissingCredentials means the app key/secret were never configured.
// Fatal for the call; there is nothing to retry.
var ErrMissingCredentials = errors.New("kis: app key/secret not configured")

// Client talks to the brokerage REST API. Quote calls authenticate through
// the injected TokenProvider; token issuance itself is unauthenticated.
type Client struct {
	baseURL   string
	appKey    string
	appSecret string

	http    *xhttp.Client
	tokens  repository.TokenProvider
	logger  *xlogger.Logger
	metrics repository.Metrics

	now func() time.Time
}

// New creates a KIS API client.
func New(baseURL, appKey, appSecret string, httpClient *xhttp.Client, logger *xlogger.Logger, metrics repository.Metrics) *Client {
	return &Client{
		baseURL:   baseURL,
		appKey:    appKey,
		appSecret: appSecret,
		http:      httpClient,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// SetTokenProvider wires the token source. Separate from New because the
// token manager itself issues tokens through this client.
func (c *Client) SetTokenProvider(tp repository.TokenProvider) {
	c.tokens = tp
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// IssueToken requests a fresh client-credentials token. Returns the raw
// token and the provider-stated TTL; the caller applies its safety margin.
func (c *Client) IssueToken(ctx context.Context) (string, time.Duration, error) {
	if c.appKey == "" || c.appSecret == "" {
		return "", 0, ErrMissingCredentials
	}

	var resp tokenResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + tokenPath,
		Body: map[string]string{
			"grant_type": "client_credentials",
			"appkey":     c.appKey,
			"appsecret":  c.appSecret,
		},
	}, &resp)
	if err != nil {
		c.metrics.RecordProviderCall("tokenP", "error")
		return "", 0, fmt.Errorf("kis: token issuance: %s", providerMessage(err))
	}
	if resp.AccessToken == "" {
		c.metrics.RecordProviderCall("tokenP", "error")
		return "", 0, fmt.Errorf("kis: token issuance: empty access_token")
	}

	c.metrics.RecordProviderCall("tokenP", "ok")
	ttl := time.Duration(resp.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return resp.AccessToken, ttl, nil
}

func (c *Client) authHeaders(token, trID string) map[string]string {
	return map[string]string{
		"authorization": "Bearer " + token,
		"appkey":        c.appKey,
		"appsecret":     c.appSecret,
		"tr_id":         trID,
		"custtype":      "P",
	}
}

// providerMessage extracts the provider's {msg_cd, msg1} error envelope
// when present, otherwise falls back to the HTTP status line.
func providerMessage(err error) string {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		var env struct {
			MsgCd string `json:"msg_cd"`
			Msg1  string `json:"msg1"`
		}
		if json.Unmarshal(se.Body, &env) == nil && env.Msg1 != "" {
			return fmt.Sprintf("%s %s", env.MsgCd, env.Msg1)
		}
		return se.Status
	}
	return err.Error()
}
