package usecase

import (
	"context"
	"sync"
	"time"

	"kisquote/internal/domain/models"
	"kisquote/internal/domain/repository"
	"kisquote/internal/service/ratelimit"
	xlogger "kisquote/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// Issuer requests a fresh token from the provider.
type Issuer interface {
	IssueToken(ctx context.Context) (string, time.Duration, error)
}

// TokenManager owns the single provider token: memory slot first, durable
// store second, provider issuance last. Issuance is single-flighted so N
// concurrent callers share one outbound request.
type TokenManager struct {
	issuer  Issuer
	store   repository.TokenStore
	tracker *ratelimit.Tracker
	logger  *xlogger.Logger
	metrics repository.Metrics
	margin  time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	token *models.Token

	sf singleflight.Group
}

// NewTokenManager creates a token manager. margin is subtracted from the
// provider TTL so a token is dropped before the provider invalidates it.
func NewTokenManager(
	issuer Issuer,
	store repository.TokenStore,
	tracker *ratelimit.Tracker,
	logger *xlogger.Logger,
	metrics repository.Metrics,
	margin time.Duration,
) *TokenManager {
	return &TokenManager{
		issuer:  issuer,
		store:   store,
		tracker: tracker,
		logger:  logger,
		metrics: metrics,
		margin:  margin,
		now:     time.Now,
	}
}

// GetToken returns a valid bearer token, refreshing through the store or
// the provider when the memory slot has expired.
func (m *TokenManager) GetToken(ctx context.Context) (string, error) {
	now := m.now()

	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	if token.Valid(now) {
		return token.AccessToken, nil
	}

	// Detached from the winner's cancellation: coalesced callers share this
	// flight, and the issuer's HTTP timeout still bounds it.
	refreshCtx := context.WithoutCancel(ctx)
	v, err, _ := m.sf.Do("token", func() (interface{}, error) {
		return m.refresh(refreshCtx)
	})
	if err != nil {
		return "", err
	}
	return v.(*models.Token).AccessToken, nil
}

func (m *TokenManager) refresh(ctx context.Context) (*models.Token, error) {
	now := m.now()

	// A coalesced caller may arrive after a refresh already landed.
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	if token.Valid(now) {
		return token, nil
	}

	// Durable store: avoids redundant provider calls after a cold start.
	if stored, err := m.store.Load(ctx); err != nil {
		m.logger.Warn("token store read failed, treating as miss", xlogger.Error(err))
		m.metrics.RecordError("token_store_read")
	} else if stored.Valid(now) {
		m.setToken(stored)
		return stored, nil
	}

	if m.tracker.Record() {
		m.logger.Warn("token issuance requested within the advisory window of the previous one")
	}

	access, ttl, err := m.issuer.IssueToken(ctx)
	if err != nil {
		m.metrics.RecordError("token_issuance")
		return nil, err
	}

	margin := m.margin
	if margin >= ttl {
		margin = 0
	}
	token = &models.Token{
		AccessToken: access,
		ExpiresAt:   now.Add(ttl - margin),
	}
	m.setToken(token)
	m.metrics.RecordTokenIssued()
	m.logger.Info("provider token issued", xlogger.Any("expires_at", token.ExpiresAt))

	// Best-effort: the memory slot already has a usable token.
	if err := m.store.Save(ctx, token); err != nil {
		m.logger.Warn("token store write failed", xlogger.Error(err))
		m.metrics.RecordError("token_store_write")
	}

	return token, nil
}

func (m *TokenManager) setToken(token *models.Token) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}
