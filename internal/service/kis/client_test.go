package kis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	xhttp "kisquote/pkg/http"
	xlogger "kisquote/pkg/logger"
)

type staticToken string

func (s staticToken) GetToken(_ context.Context) (string, error) { return string(s), nil }

type nopMetrics struct{}

func (nopMetrics) RecordCacheHit(int)              {}
func (nopMetrics) RecordCacheMiss(int)             {}
func (nopMetrics) RecordProviderCall(_, _ string)  {}
func (nopMetrics) RecordTokenIssued()              {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLatency(_ string, _ float64) {}

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := New(baseURL, "key", "secret", xhttp.NewClient(xhttp.WithTimeout(5*time.Second)), testLogger(t), nopMetrics{})
	c.SetTokenProvider(staticToken("tok"))
	return c
}

func TestCleanTicker(t *testing.T) {
	cases := map[string]string{
		"005930":        "005930",
		"KOSPI:005930":  "005930",
		"kosdaq:035420": "035420",
		" 000660 ":      "000660",
	}
	for in, want := range cases {
		if got := CleanTicker(in); got != want {
			t.Fatalf("CleanTicker(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFetchOneParsesQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("authorization"); got != "Bearer tok" {
			t.Errorf("authorization header = %q", got)
		}
		if got := r.Header.Get("tr_id"); got != trIDPrice {
			t.Errorf("tr_id header = %q", got)
		}
		if got := r.URL.Query().Get("FID_INPUT_ISCD"); got != "005930" {
			t.Errorf("FID_INPUT_ISCD = %q, want normalized code", got)
		}
		w.Write([]byte(`{"rt_cd":"0","output":{"stck_prpr":"71500","stck_sdpr":"70900","prdy_ctrt":"0.85","acml_vol":"1234567"}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	q, err := c.FetchOne(context.Background(), "KOSPI:005930")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Ticker != "KOSPI:005930" {
		t.Fatalf("quote must keep the original ticker, got %q", q.Ticker)
	}
	if q.CurrentPrice != 71500 || q.PreviousClose != 70900 || q.Volume != 1234567 {
		t.Fatalf("unexpected quote %+v", q)
	}
	if q.ChangeRate != 0.85 {
		t.Fatalf("change rate = %v", q.ChangeRate)
	}
	if q.ObservedAt.IsZero() {
		t.Fatalf("observedAt not stamped")
	}
}

func TestFetchOneSurfacesProviderEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"msg_cd":"EGW00123","msg1":"token expired"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.FetchOne(context.Background(), "005930")
	if err == nil {
		t.Fatalf("expected error")
	}
	if want := "EGW00123 token expired"; !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not surface provider envelope %q", err.Error(), want)
	}
}

func TestFetchOneRejectsUnparsableFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rt_cd":"0","output":{"stck_prpr":"n/a","stck_sdpr":"70900","prdy_ctrt":"0.85","acml_vol":"0"}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	if _, err := c.FetchOne(context.Background(), "005930"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFetchManyPartitionsByTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("FID_INPUT_ISCD") == "999999" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"msg_cd":"EGW00002","msg1":"no such instrument"}`))
			return
		}
		w.Write([]byte(`{"rt_cd":"0","output":{"stck_prpr":"71500","stck_sdpr":"70900","prdy_ctrt":"0.85","acml_vol":"10"}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	tickers := []string{"005930", "999999"}
	res := c.FetchMany(context.Background(), tickers)

	if len(res.Succeeded)+len(res.Failed) != len(tickers) {
		t.Fatalf("key union mismatch: %d + %d != %d", len(res.Succeeded), len(res.Failed), len(tickers))
	}
	if _, ok := res.Succeeded["005930"]; !ok {
		t.Fatalf("005930 should have succeeded: %+v", res)
	}
	if _, ok := res.Failed["999999"]; !ok {
		t.Fatalf("999999 should have failed: %+v", res)
	}
	if _, both := res.Failed["005930"]; both {
		t.Fatalf("maps must be disjoint")
	}
}

func TestFetchDailyClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("FID_INPUT_DATE_1"); got != "20250103" {
			t.Errorf("FID_INPUT_DATE_1 = %q", got)
		}
		if got := r.URL.Query().Get("FID_PERIOD_DIV_CODE"); got != "D" {
			t.Errorf("FID_PERIOD_DIV_CODE = %q", got)
		}
		w.Write([]byte(`{"rt_cd":"0","output2":[{"stck_clpr":"71200"}]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	date := time.Date(2025, 1, 3, 0, 0, 0, 0, time.FixedZone("KST", 9*60*60))
	px, ok := c.FetchDailyClose(context.Background(), "005930", date)
	if !ok || px != 71200 {
		t.Fatalf("got (%d, %v), want (71200, true)", px, ok)
	}
}

func TestFetchDailyCloseAbsentOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rt_cd":"1","msg_cd":"EGW00003","msg1":"no data","output2":[]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	date := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	if _, ok := c.FetchDailyClose(context.Background(), "005930", date); ok {
		t.Fatalf("expected absent result")
	}

	closes := c.FetchManyDailyClose(context.Background(), []string{"005930", "000660"}, date)
	if len(closes) != 0 {
		t.Fatalf("absent tickers must be omitted, got %v", closes)
	}
}

func TestIssueToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != tokenPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"access_token":"fresh","expires_in":86400}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	token, ttl, err := c.IssueToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "fresh" || ttl != 24*time.Hour {
		t.Fatalf("got (%q, %v)", token, ttl)
	}
}

func TestIssueTokenMissingCredentials(t *testing.T) {
	c := New("http://unused", "", "", xhttp.NewClient(), testLogger(t), nopMetrics{})
	c.SetTokenProvider(staticToken("tok"))
	if _, _, err := c.IssueToken(context.Background()); err != ErrMissingCredentials {
		t.Fatalf("got %v, want ErrMissingCredentials", err)
	}
}
