package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kisquote/internal/domain/models"
	"kisquote/internal/service/ratelimit"
	xlogger "kisquote/pkg/logger"
)

type fakeIssuer struct {
	calls   atomic.Int64
	ttl     time.Duration
	err     error
	started chan struct{} // closed on first call, if set
	release chan struct{} // blocks the call until closed, if set
}

func (f *fakeIssuer) IssueToken(ctx context.Context) (string, time.Duration, error) {
	if f.calls.Add(1) == 1 && f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if f.err != nil {
		return "", 0, f.err
	}
	return "issued", f.ttl, nil
}

type fakeTokenStore struct {
	mu      sync.Mutex
	token   *models.Token
	loadErr error
	saveErr error
	saves   int
}

func (f *fakeTokenStore) Load(_ context.Context) (*models.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.token, nil
}

func (f *fakeTokenStore) Save(_ context.Context, token *models.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.token = token
	return nil
}

func newTestManager(t *testing.T, issuer *fakeIssuer, store *fakeTokenStore) *TokenManager {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewTokenManager(issuer, store, ratelimit.New(60*time.Second), l, nopMetrics{}, time.Hour)
}

func TestGetTokenIssuesOnceWithinValidity(t *testing.T) {
	issuer := &fakeIssuer{ttl: 24 * time.Hour}
	m := newTestManager(t, issuer, &fakeTokenStore{})

	for i := 0; i < 5; i++ {
		tok, err := m.GetToken(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok != "issued" {
			t.Fatalf("token = %q", tok)
		}
	}
	if got := issuer.calls.Load(); got != 1 {
		t.Fatalf("issuer called %d times, want 1", got)
	}
}

func TestGetTokenAppliesSafetyMargin(t *testing.T) {
	issuer := &fakeIssuer{ttl: 24 * time.Hour}
	m := newTestManager(t, issuer, &fakeTokenStore{})
	base := time.Date(2025, 1, 3, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	if _, err := m.GetToken(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := base.Add(23 * time.Hour)
	if !m.token.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", m.token.ExpiresAt, want)
	}
}

func TestGetTokenColdStartUsesStore(t *testing.T) {
	issuer := &fakeIssuer{ttl: 24 * time.Hour}
	store := &fakeTokenStore{token: &models.Token{
		AccessToken: "stored",
		ExpiresAt:   time.Now().Add(2 * time.Hour),
	}}
	m := newTestManager(t, issuer, store)

	tok, err := m.GetToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "stored" {
		t.Fatalf("token = %q, want stored token", tok)
	}
	if issuer.calls.Load() != 0 {
		t.Fatalf("issuer must not be called when the store has a valid token")
	}
}

func TestGetTokenReissuesAfterExpiry(t *testing.T) {
	issuer := &fakeIssuer{ttl: 24 * time.Hour}
	m := newTestManager(t, issuer, &fakeTokenStore{})

	if _, err := m.GetToken(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.setToken(&models.Token{AccessToken: "old", ExpiresAt: time.Now().Add(-time.Minute)})

	if _, err := m.GetToken(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := issuer.calls.Load(); got != 2 {
		t.Fatalf("issuer called %d times, want 2", got)
	}
}

func TestGetTokenSingleFlight(t *testing.T) {
	issuer := &fakeIssuer{
		ttl:     24 * time.Hour,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := newTestManager(t, issuer, &fakeTokenStore{})

	var wg sync.WaitGroup
	errs := make([]error, 10)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = m.GetToken(context.Background())
	}()
	<-issuer.started

	// These arrive while the first issuance is in flight and must coalesce.
	for i := 1; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.GetToken(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(issuer.release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := issuer.calls.Load(); got != 1 {
		t.Fatalf("issuer called %d times under concurrency, want 1", got)
	}
}

func TestGetTokenRefreshSurvivesCancelledCaller(t *testing.T) {
	issuer := &fakeIssuer{ttl: 24 * time.Hour}
	m := newTestManager(t, issuer, &fakeTokenStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The refresh flight is shared process state; one dead caller must not
	// abort the issuance its siblings would coalesce onto.
	tok, err := m.GetToken(ctx)
	if err != nil {
		t.Fatalf("cancelled caller poisoned the refresh: %v", err)
	}
	if tok != "issued" {
		t.Fatalf("token = %q", tok)
	}
	if issuer.calls.Load() != 1 {
		t.Fatalf("issuer calls = %d, want 1", issuer.calls.Load())
	}
}

func TestGetTokenSwallowsStoreFailures(t *testing.T) {
	issuer := &fakeIssuer{ttl: 24 * time.Hour}
	store := &fakeTokenStore{
		loadErr: errors.New("store down"),
		saveErr: errors.New("store down"),
	}
	m := newTestManager(t, issuer, store)

	tok, err := m.GetToken(context.Background())
	if err != nil {
		t.Fatalf("store failure must not fail the caller: %v", err)
	}
	if tok != "issued" {
		t.Fatalf("token = %q", tok)
	}
	if store.saves != 1 {
		t.Fatalf("save attempts = %d, want 1", store.saves)
	}
}

func TestGetTokenIssuanceErrorPropagates(t *testing.T) {
	issuer := &fakeIssuer{err: errors.New("EGW00201 rejected")}
	m := newTestManager(t, issuer, &fakeTokenStore{})

	if _, err := m.GetToken(context.Background()); err == nil {
		t.Fatalf("expected issuance error")
	}
}
