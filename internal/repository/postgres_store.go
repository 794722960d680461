package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kisquote/internal/domain/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// The token table holds exactly one row.
const tokenRowID = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		id INT PRIMARY KEY,
		access_token TEXT NOT NULL,
		expires_at BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS price_cache (
		ticker TEXT PRIMARY KEY,
		current_price BIGINT NOT NULL,
		previous_close BIGINT NOT NULL,
		change_rate DOUBLE PRECISION NOT NULL,
		volume BIGINT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		expires_at BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// PostgresStore implements both TokenStore and PriceStore on the two
// shared tables. Expiries are stored as unix milliseconds.
type PostgresStore struct {
	db *sqlx.DB
}

// PostgresOption configures the store.
type PostgresOption func(*postgresConfig)

type postgresConfig struct {
	maxOpenConns int
	maxIdleConns int
	connLifetime time.Duration
}

// WithConnLimits sets pool limits.
func WithConnLimits(maxOpen, maxIdle int, lifetime time.Duration) PostgresOption {
	return func(c *postgresConfig) {
		c.maxOpenConns = maxOpen
		c.maxIdleConns = maxIdle
		c.connLifetime = lifetime
	}
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	cfg := &postgresConfig{maxOpenConns: 10, maxIdleConns: 5, connLifetime: 30 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxLifetime(cfg.connLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
	}

	return &PostgresStore{db: db}, nil
}

type tokenRow struct {
	AccessToken string `db:"access_token"`
	ExpiresAt   int64  `db:"expires_at"`
}

func (s *PostgresStore) Load(ctx context.Context) (*models.Token, error) {
	var row tokenRow
	err := s.db.GetContext(ctx, &row,
		`SELECT access_token, expires_at FROM tokens WHERE id = $1`, tokenRowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres token load: %w", err)
	}
	return &models.Token{
		AccessToken: row.AccessToken,
		ExpiresAt:   time.UnixMilli(row.ExpiresAt),
	}, nil
}

func (s *PostgresStore) Save(ctx context.Context, token *models.Token) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (id, access_token, expires_at, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (id) DO UPDATE
		 SET access_token = EXCLUDED.access_token,
		     expires_at = EXCLUDED.expires_at,
		     updated_at = now()`,
		tokenRowID, token.AccessToken, token.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("postgres token save: %w", err)
	}
	return nil
}

type priceRow struct {
	Ticker        string    `db:"ticker"`
	CurrentPrice  int64     `db:"current_price"`
	PreviousClose int64     `db:"previous_close"`
	ChangeRate    float64   `db:"change_rate"`
	Volume        int64     `db:"volume"`
	Timestamp     time.Time `db:"timestamp"`
	ExpiresAt     int64     `db:"expires_at"`
}

func (s *PostgresStore) GetMany(ctx context.Context, tickers []string) (map[string]*models.CachedQuote, error) {
	if len(tickers) == 0 {
		return map[string]*models.CachedQuote{}, nil
	}

	query, args, err := sqlx.In(
		`SELECT ticker, current_price, previous_close, change_rate, volume, timestamp, expires_at
		 FROM price_cache WHERE ticker IN (?)`, tickers)
	if err != nil {
		return nil, fmt.Errorf("postgres price query: %w", err)
	}

	var rows []priceRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("postgres price get: %w", err)
	}

	out := make(map[string]*models.CachedQuote, len(rows))
	for _, r := range rows {
		out[r.Ticker] = &models.CachedQuote{
			Quote: models.Quote{
				Ticker:        r.Ticker,
				CurrentPrice:  r.CurrentPrice,
				PreviousClose: r.PreviousClose,
				ChangeRate:    r.ChangeRate,
				Volume:        r.Volume,
				ObservedAt:    r.Timestamp,
			},
			ExpiresAt: time.UnixMilli(r.ExpiresAt),
		}
	}
	return out, nil
}

func (s *PostgresStore) PutMany(ctx context.Context, quotes []*models.CachedQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres price put: %w", err)
	}
	defer tx.Rollback()

	for _, q := range quotes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO price_cache
			 (ticker, current_price, previous_close, change_rate, volume, timestamp, expires_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			 ON CONFLICT (ticker) DO UPDATE
			 SET current_price = EXCLUDED.current_price,
			     previous_close = EXCLUDED.previous_close,
			     change_rate = EXCLUDED.change_rate,
			     volume = EXCLUDED.volume,
			     timestamp = EXCLUDED.timestamp,
			     expires_at = EXCLUDED.expires_at,
			     updated_at = now()`,
			q.Ticker, q.CurrentPrice, q.PreviousClose, q.ChangeRate, q.Volume,
			q.ObservedAt, q.ExpiresAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("postgres price put %s: %w", q.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres price put commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
